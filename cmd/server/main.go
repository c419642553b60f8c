package main

import (
	"github.com/OFFIS-RIT/lumen/backend/internal/server"
	"github.com/OFFIS-RIT/lumen/backend/internal/setup"
	"github.com/OFFIS-RIT/lumen/backend/internal/util"
)

func main() {
	util.LoadEnv()
	setup.Logger("server")

	server.Init()
}
