package prompt

import "github.com/raaihank/doc-sanitizer/internal/policy"

// sectionTitles are the rule headings, one per category
var sectionTitles = map[policy.Category]string{
	policy.PersonName:  "Person Names",
	policy.Email:       "Email Addresses",
	policy.Phone:       "Phone Numbers",
	policy.Company:     "Company Names",
	policy.Address:     "Physical Addresses",
	policy.Financial:   "Financial Data",
	policy.IDNumbers:   "ID Numbers",
	policy.DateOfBirth: "Dates of Birth",
}

type ruleKey struct {
	category policy.Category
	action   policy.Action
}

// ruleBodies hold the instructions for every legal category/action pair
var ruleBodies = map[ruleKey]string{
	{policy.PersonName, policy.Delete}: `- Remove ALL person names completely
- Replace with: [NAME_REMOVED]
- Examples:
  - "John Smith sent the email" → "[NAME_REMOVED] sent the email"
  - "Contact Sarah Johnson" → "Contact [NAME_REMOVED]"`,
	{policy.PersonName, policy.Invent}: `- Replace ALL person names with consistent synthetic names
- IMPORTANT: Same original name = same invented name throughout
- Examples:
  - "John Smith" → "Alex Chen" (all occurrences)
  - "Sarah Johnson" → "Maria Garcia" (all occurrences)
- Keep the invented names realistic and professional`,
	{policy.PersonName, policy.KeepPart}: `- Keep ONLY the first name
- Drop middle names and last names completely
- Number duplicate first names sequentially
- Examples:
  - "John Michael Smith" → "John 1"
  - "John Andrew Davis" (different person) → "John 2"
  - "Sarah Johnson" → "Sarah 1"
- Track which original person maps to which number for consistency`,

	{policy.Email, policy.Delete}: `- Remove ALL email addresses completely
- Replace with: [EMAIL_REMOVED]
- Examples:
  - "Contact john.smith@company.com" → "Contact [EMAIL_REMOVED]"`,
	{policy.Email, policy.KeepPart}: `- Keep the domain name only
- Remove the local part (before @)
- Format: [EMAIL_REDACTED]@domain.com
- Examples:
  - "john.smith@company.com" → "[EMAIL_REDACTED]@company.com"
  - "ceo@example.org" → "[EMAIL_REDACTED]@example.org"`,

	{policy.Phone, policy.Delete}: `- Remove ALL phone numbers completely
- Replace with: [PHONE_REMOVED]
- Match all formats: international, local, with/without spaces/dashes
- Examples:
  - "+1 (555) 123-4567" → "[PHONE_REMOVED]"
  - "555.123.4567" → "[PHONE_REMOVED]"`,
	{policy.Phone, policy.Invent}: `- Replace with synthetic phone numbers
- Maintain the same format and country/area code style
- Examples:
  - "+1 (555) 123-4567" → "+1 (555) 987-6543"
  - "+61 2 1234 5678" → "+61 2 8765 4321"`,
	{policy.Phone, policy.KeepPart}: `- Keep country code and area code only
- Remove remaining digits
- Format: +XX (XX) [REDACTED]
- Examples:
  - "+1 (555) 123-4567" → "+1 (555) [REDACTED]"
  - "+61 2 1234 5678" → "+61 (2) [REDACTED]"`,

	{policy.Company, policy.KeepPart}: `- Keep company names exactly as-is
- No modification needed
- Distinguish companies from person names using context`,
	{policy.Company, policy.Invent}: `- Replace company names with consistent synthetic names
- IMPORTANT: Same original company = same invented name throughout
- Examples:
  - "Acme Corp" → "TechFlow Industries" (all occurrences)
  - "Google" → "DataSphere Inc" (all occurrences)
- Keep invented names realistic and business-appropriate`,

	{policy.Address, policy.Delete}: `- Remove ALL physical addresses completely
- Replace with: [ADDRESS_REMOVED]
- Match street addresses, PO boxes, city/state/zip combinations
- Examples:
  - "123 Main St, New York, NY 10001" → "[ADDRESS_REMOVED]"
  - "PO Box 456, Seattle WA" → "[ADDRESS_REMOVED]"`,
	{policy.Address, policy.Invent}: `- Replace with synthetic addresses
- Maintain same format and general location type
- Examples:
  - "123 Main St, New York, NY 10001" → "456 Oak Ave, Chicago, IL 60601"
  - Keep consistency if same address appears multiple times`,

	{policy.Financial, policy.Delete}: `- Remove ALL financial data completely
- This includes: account numbers, credit card numbers, bank details, specific monetary amounts tied to individuals
- Replace with: [FINANCIAL_REMOVED]
- Note: General business figures or statistics may be kept unless tied to specific individuals`,
	{policy.Financial, policy.Invent}: `- Replace financial data with synthetic values
- Maintain same format (e.g., 16-digit card numbers, account number patterns)
- For amounts, use similar order of magnitude`,

	{policy.IDNumbers, policy.Delete}: `- Remove ALL identification numbers completely
- This includes: employee IDs, customer IDs, SSN/TFN, passport numbers, driver's license numbers
- Replace with: [ID_REMOVED]`,
	{policy.IDNumbers, policy.Invent}: `- Replace ID numbers with synthetic values
- Maintain same format and length
- Examples:
  - "EMP-12345" → "EMP-67890"
  - SSN format "123-45-6789" → "987-65-4321"`,

	{policy.DateOfBirth, policy.Delete}: `- Remove ALL dates of birth completely
- Replace with: [DOB_REMOVED]
- Look for context clues like "born on", "DOB:", "birthday", age calculations`,
	{policy.DateOfBirth, policy.Invent}: `- Replace with synthetic dates
- Maintain reasonable age range based on context
- Keep same date format as original`,
}
