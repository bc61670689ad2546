package config

import "github.com/agenthands/ctigraph/internal/core/model"

const threatActorsPrompt = `You are a cybersecurity threat intelligence assistant. Extract structured threat intelligence data from the given report.

**Rules:**
- Only extract the name(s) of threat actors mentioned in the text.
- Do **not** include any other JSON keys or additional data.

**Report:** %s

**Strict JSON Response Format:**
{
    "threat_actors": ["<Threat Actor Name>", "<Threat Actor Name>"]
}

**Important:**
- If no threat actor is found, return an empty list (e.g., ` + "`\"threat_actors\": []`" + `).
- Do **not** use markdown or explanations, **only return JSON**.
`

const ttpsPrompt = `You are a cybersecurity threat intelligence assistant. Extract structured threat intelligence data from the given report.

**Rules:**
- Analyse and find the MITRE ATT&CK **Tactics and Techniques**.
- Do **not** include any other JSON keys or additional data.

**Report:** %s

**Strict JSON Response Format:**
{
    "ttps": {
        "Tactics": [
            ["<Tactic Name>"],
            ["<Tactic Name>"]
        ],
        "Techniques": [
            ["<Technique Name>"],
            ["<Technique Name>"]
        ]
    }
}

**Important:**
- If no TTPs are found, return an empty ` + "`\"ttps\": {\"Tactics\": [], \"Techniques\": []}`" + ` object.
- Do **not** use markdown or explanations, **only return JSON**.
`

const malwarePrompt = `You are a cybersecurity threat intelligence assistant. Extract structured threat intelligence data from the given report.

**Rules:**
- Only extract the malware names.
- Do **not** include any other JSON keys or additional data.

**Report:** %s

**Strict JSON Response Format:**
{
    "malware": [
        {"Name": "<Malware Name>"}
    ]
}

**Important:**
- If no malware is found, return an empty list (e.g., ` + "`\"malware\": []`" + `).
- Do **not** use markdown or explanations, **only return JSON**.
`

const targetedEntitiesPrompt = `Extract the names of **Targeted Entities** (industries, sectors, organizations) from the text.

**Rules:**
- Only extract the names of targeted industries/sectors.
- Do **not** include any other JSON keys or additional data.

**Report:** %s

**Strict JSON Response Format:**
{
    "targeted_entities": ["<Entity Name>", "<Entity Name>"]
}

**Important:**
- If no targeted entities are found, return an empty list (e.g., ` + "`\"targeted_entities\": []`" + `).
- Do **not** use markdown or explanations, **only return JSON**.
`

// DefaultCategories returns the retrieval queries and prompts for every extraction category.
func DefaultCategories() map[string]CategoryConfig {
	return map[string]CategoryConfig{
		model.CategoryThreatActors: {
			Query:  "Threat Actors, Adversary Groups, Cybercriminal Organizations, APT Groups, Cyber Espionage Groups",
			Prompt: threatActorsPrompt,
		},
		model.CategoryTTPs: {
			Query:  "Attacks, Tactics, Techniques, and Procedures (TTPs), Attack Patterns, Exploitation Techniques",
			Prompt: ttpsPrompt,
		},
		model.CategoryMalware: {
			Query:  "Malware, Malicious Files, Ransomware, Trojans, Worms, Keyloggers, Botnets, Fileless Malware, Rootkits, Backdoors",
			Prompt: malwarePrompt,
		},
		model.CategoryTargetedEntities: {
			Query:  "Targeted Entities (victims), Industries, Organizations, Government Agencies, Individuals, Geographic Regions",
			Prompt: targetedEntitiesPrompt,
		},
	}
}
