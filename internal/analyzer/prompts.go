package analyzer

// SystemPrompt is the system prompt shared by the scene map and critique calls.
const SystemPrompt = `You are a keynote architect who coaches speakers on structure, pacing and delivery.
Use only the canonical TAGS. Output exactly:
[DIAGNOSIS]: <tags and short issue phrases>
[REWRITE]: <improved scene or bullets>
[RATIONALE]: <2-4 concise lines>`

// SceneMapPrompt asks for a narrative breakdown of the whole keynote.
// The document text is appended after a blank line.
const SceneMapPrompt = `Create a scene map from the keynote text.
Return markdown with these sections:
- [SCENES]: ordered list; each scene 1-2 lines with stakes/surprises.
- [BRIDGES]: suggested transitions between scenes.
- [HEAVY_BEATS]: lines requiring slower tone.
- [SLIDE_CUES]: speak, then reveal; blank between beats.`

// CritiquePrompt is the user prompt template for one segment.
const CritiquePrompt = `[OPERATION]: Diagnose & rewrite
[SNIPPET]:
%s

[CONTEXT]: Bridge into/out of this scene as needed; do not duplicate neighbors.
[REQUIRE_TAGS]: choose the most relevant 3-6 tags.
[FORMAT]: [DIAGNOSIS] ... [REWRITE] ... [RATIONALE] ...`
