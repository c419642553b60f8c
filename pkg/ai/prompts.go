package ai

const StructurePrompt = `
# Task Context
You are a study assistant that turns raw document excerpts into structured study notes. You will be given %d numbered excerpts from the document "%s".

# Detailed Task Description & Rules
- Produce exactly one entry per excerpt and copy the excerpt number into "chunkIndex".
- "summary": 1-3 sentences that capture what the excerpt teaches.
- "title": a short heading for the excerpt.
- "keyIdeas": 2-5 short statements a student should remember.
- "detailedConcepts": the concepts the excerpt explains, each with a one sentence explanation, optional examples and an optional category.
- "chunkType": one of introduction, definition, explanation, example, process, conclusion, reference, other.
- "importance": one of low, medium, high.
- "dependencies": concepts the reader must already know to understand the excerpt.
- Use only information contained in the excerpts.

# Output Formatting
Return a JSON object with this structure:
{
  "chunks": [
    {
      "chunkIndex": 0,
      "title": "",
      "summary": "",
      "keyIdeas": [""],
      "detailedConcepts": [{"concept": "", "explanation": "", "examples": [""], "category": ""}],
      "chunkType": "",
      "importance": "medium",
      "dependencies": [""]
    }
  ]
}
`

const ExtractPromptFullQuality = `
# Task Context
You are an expert knowledge engineer building a knowledge map from study material. The material comes from "%s" and is given as %d excerpts with their full text.

# Detailed Task Description & Rules
- Extract up to %d knowledge elements that a student would need to learn.
- Allowed element types: %s.
- Prefer precise, canonical names. List other names used in the text as "aliases".
- "desc" is a comprehensive, self contained explanation based on the text.
- "cat" is a short subject category (for example "biology" or "world war ii").
- "conf" is your confidence between 0 and 1 that the element is correct and relevant.
- Add "examples" when the text gives concrete examples.
- Also list relationships between extracted elements, using the element names for "from" and "to".

# Output Formatting
Return a JSON object with this structure:
{
  "elements": [
    {"name": "", "type": "", "aliases": [""], "desc": "", "cat": "", "conf": 0.8, "examples": [""]}
  ],
  "relationships": [
    {"from": "", "to": "", "type": "", "desc": "", "conf": 0.7}
  ]
}
`

const ExtractPromptBalanced = `
# Task Context
You are a knowledge engineer building a knowledge map from study material. The material comes from "%s" and is given as %d excerpt summaries with shortened text.

# Detailed Task Description & Rules
- Extract up to %d of the most important knowledge elements.
- Allowed element types: %s.
- List alternative names as "aliases".
- "desc" explains the element in one or two sentences, "cat" is a short subject category.
- "conf" is your confidence between 0 and 1.
- List relationships between extracted elements using their names.

# Output Formatting
Return a JSON object with this structure:
{
  "elements": [
    {"name": "", "type": "", "aliases": [""], "desc": "", "cat": "", "conf": 0.8, "examples": [""]}
  ],
  "relationships": [
    {"from": "", "to": "", "type": "", "desc": "", "conf": 0.7}
  ]
}
`

const ExtractPromptSmartSampling = `
# Task Context
You are a knowledge engineer building a knowledge map from a long document, "%s". Only %d representative excerpts are shown, each as a summary with partial text, so every excerpt stands for a larger part of the document.

# Detailed Task Description & Rules
- Extract up to %d knowledge elements and cover a broad diversity of element types.
- Allowed element types: %s. Use at least four different types when the material allows it.
- Favour elements that are likely central to the whole document over incidental details.
- List alternative names as "aliases", a short explanation as "desc", a subject category as "cat" and your confidence between 0 and 1 as "conf".
- List relationships between extracted elements using their names.

# Output Formatting
Return a JSON object with this structure:
{
  "elements": [
    {"name": "", "type": "", "aliases": [""], "desc": "", "cat": "", "conf": 0.8, "examples": [""]}
  ],
  "relationships": [
    {"from": "", "to": "", "type": "", "desc": "", "conf": 0.7}
  ]
}
`

const EnrichHeader = `

# Knowledge map
The following entities were extracted from the source material. Use them to keep terminology and facts consistent.
`
