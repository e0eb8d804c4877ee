// Package prompt turns extracted document text and a profile configuration
// into the instruction sent to the model, and renders the output header.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/policy"
	"gopkg.in/yaml.v3"
)

const header = `You are a document sanitization expert. Your task is to process the following document and remove or transform personally identifiable information (PII) according to the specific rules provided.

## CRITICAL INSTRUCTIONS

1. **Preserve Document Structure**: Maintain all headings, tables, lists, and formatting exactly as they appear.
2. **Consistency**: If the same entity (person, company, etc.) appears multiple times, use the SAME replacement throughout the entire document.
3. **Context Awareness**: Use context to identify PII that may not follow standard formats.
4. **Output Format**: Return ONLY the sanitized document content. Do not include explanations or metadata.

## PII HANDLING RULES

`

const entityTracking = `## ENTITY TRACKING

You MUST track entities to ensure consistency:
- If "John Smith" appears 5 times and the rule is KEEP_PART, all 5 instances must become "John 1"
- If a second person named "John Davis" appears, they become "John 2"
- If the rule is INVENT, invent ONE replacement name and use it for ALL occurrences

## DOCUMENT TO SANITIZE

`

const output = `

## OUTPUT

Return the sanitized document below. Preserve all formatting (markdown headers, tables, lists, etc.):
`

// Build returns the full instruction for text under cfg. It is pure: the same
// inputs always produce the same prompt.
func Build(text string, cfg policy.Configuration) string {
	var b strings.Builder
	b.Grow(len(header) + len(entityTracking) + len(text) + len(output) + 4096)

	b.WriteString(header)
	b.WriteString(Rules(cfg))
	b.WriteString("\n\n")
	b.WriteString(entityTracking)
	b.WriteString(text)
	b.WriteString(output)
	return b.String()
}

// Rules renders one section per category in canonical order
func Rules(cfg policy.Configuration) string {
	sections := make([]string, 0, len(policy.Categories()))
	for _, c := range policy.Categories() {
		cc := cfg.Get(c)
		body, ok := ruleBodies[ruleKey{c, cc.Action}]
		if !ok {
			continue
		}

		section := fmt.Sprintf("### %s (%s)\n%s", sectionTitles[c], strings.ToUpper(string(cc.Action)), body)
		if cc.Description != "" {
			section += "\n- Profile note: " + cc.Description
		}
		sections = append(sections, section+"\n")
	}
	return strings.Join(sections, "\n")
}

type frontmatter struct {
	SourceType string    `yaml:"source_type"`
	Timestamp  time.Time `yaml:"sanitization_timestamp"`
	Model      string    `yaml:"model_used"`
	Profile    string    `yaml:"profile_used"`
}

// Frontmatter renders the YAML header placed before the sanitized document
func Frontmatter(sourceType, model, profileName string, at time.Time) (string, error) {
	data, err := yaml.Marshal(frontmatter{
		SourceType: sourceType,
		Timestamp:  at.UTC(),
		Model:      model,
		Profile:    profileName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render frontmatter: %w", err)
	}
	return "---\n" + string(data) + "---\n\n", nil
}
