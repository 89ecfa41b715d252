package llm

// systemPrompt frames the model as a tongue-diagnosis assistant.
const systemPrompt = `You are an assistant trained in Traditional Chinese Medicine tongue diagnosis.
You describe what you see in a tongue photo. You do not give medical advice beyond general wellness suggestions.`

// analysisPrompt asks for the exact section layout the report parser reads.
// Each section value goes on the line after its header.
const analysisPrompt = `Analyze the tongue in this photo. Answer in plain text using exactly these sections, in this order:

Tongue Zones:
Tip: <observation for the tip of the tongue>
Sides: <observation for the sides>
Center: <observation for the center>
Back: <observation for the back/root>

Diagnosis:
<one line with the overall pattern>

Recommendations:
- <recommendation>
- <recommendation>

Confidence: <a number between 0 and 1>

Image Quality:
<Good, Fair or Poor, with a short reason if not Good>

Notes:
<optional extra observations, or leave empty>

Do not use markdown headings or bold text. Do not add any other sections.`
