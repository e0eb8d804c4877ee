package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/raaihank/doc-sanitizer/internal/policy"
)

const timestampLayout = "2006-01-02 15:04:05"

// FormatDetail renders one profile as a category/action/description table
func FormatDetail(p *Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s (ID: %d)\n", p.Name, p.ID)
	fmt.Fprintf(&b, "Created: %s\n", p.CreatedAt.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "Modified: %s\n\n", p.ModifiedAt.UTC().Format(timestampLayout))

	table := newTable(&b)
	table.SetHeader([]string{"PII Type", "Action", "Description"})
	for _, c := range policy.Categories() {
		cc := p.Config.Get(c)
		table.Append([]string{string(c), string(cc.Action), cc.Describe(c)})
	}
	table.Render()
	return b.String()
}

// FormatTable renders a summary of several profiles, one row per profile
func FormatTable(profiles []Profile) string {
	var b strings.Builder

	header := []string{"ID", "Name"}
	for _, c := range policy.Categories() {
		header = append(header, string(c))
	}

	table := newTable(&b)
	table.SetHeader(header)
	for _, p := range profiles {
		row := []string{strconv.Itoa(p.ID), p.Name}
		for _, c := range policy.Categories() {
			row = append(row, string(p.Config.Get(c).Action))
		}
		table.Append(row)
	}
	table.Render()
	return b.String()
}

func newTable(b *strings.Builder) *tablewriter.Table {
	table := tablewriter.NewWriter(b)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
