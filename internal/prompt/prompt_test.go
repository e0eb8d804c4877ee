package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildDefaultProfile(t *testing.T) {
	cfg := policy.DefaultConfiguration()
	out := Build("Invoice for John Smith", cfg)

	assert.True(t, strings.HasPrefix(out, "You are a document sanitization expert."))
	assert.Contains(t, out, "### Person Names (KEEP_PART)")
	assert.Contains(t, out, "### Email Addresses (KEEP_PART)")
	assert.Contains(t, out, "### Phone Numbers (DELETE)")
	assert.Contains(t, out, "### Company Names (KEEP_PART)")
	assert.Contains(t, out, "### Dates of Birth (DELETE)")
	assert.Contains(t, out, "## DOCUMENT TO SANITIZE\n\nInvoice for John Smith\n\n## OUTPUT")

	rules := strings.Index(out, "## PII HANDLING RULES")
	tracking := strings.Index(out, "## ENTITY TRACKING")
	document := strings.Index(out, "## DOCUMENT TO SANITIZE")
	assert.True(t, rules < tracking && tracking < document)
}

func TestBuildFollowsActions(t *testing.T) {
	cfg := policy.DefaultConfiguration()
	require.NoError(t, cfg.Set(policy.PersonName, policy.Invent))
	require.NoError(t, cfg.Set(policy.Address, policy.Invent))

	out := Build("text", cfg)
	assert.Contains(t, out, "### Person Names (INVENT)")
	assert.NotContains(t, out, "### Person Names (KEEP_PART)")
	assert.Contains(t, out, "### Physical Addresses (INVENT)")
	assert.Contains(t, out, "456 Oak Ave, Chicago, IL 60601")
}

func TestBuildIsDeterministic(t *testing.T) {
	cfg := policy.DefaultConfiguration()
	assert.Equal(t, Build("doc", cfg), Build("doc", cfg))
}

func TestEveryLegalPairHasRules(t *testing.T) {
	for _, c := range policy.Categories() {
		assert.NotEmpty(t, sectionTitles[c], c)
		for _, a := range policy.LegalActions(c) {
			_, ok := ruleBodies[ruleKey{c, a}]
			assert.True(t, ok, "%s/%s", c, a)
		}
	}
}

func TestRulesIncludeDescriptionOverride(t *testing.T) {
	cfg := policy.DefaultConfiguration()
	cc := cfg[policy.Company]
	cc.Description = "Client names stay visible"
	cfg[policy.Company] = cc

	assert.Contains(t, Rules(cfg), "- Profile note: Client names stay visible")
}

func TestFrontmatter(t *testing.T) {
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600))
	out, err := Frontmatter("docx", "phi4:14b", "default", at)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out, "---\n"))
	require.True(t, strings.HasSuffix(out, "---\n\n"))
	assert.Contains(t, out, "sanitization_timestamp: 2026-05-06T06:08:09Z")

	body := strings.TrimSuffix(strings.TrimPrefix(out, "---\n"), "---\n\n")
	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(body), &parsed))
	assert.Equal(t, "docx", parsed["source_type"])
	assert.Equal(t, "phi4:14b", parsed["model_used"])
	assert.Equal(t, "default", parsed["profile_used"])
}
