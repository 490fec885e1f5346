package interactor

import "regexp"

// resourcePrefix matches a leading resource token such as "uniprotkb:" or
// "CHEBI_".
var resourcePrefix = regexp.MustCompile(`^\w+[-:_]`)

// NormalizeAccession strips one leading resource prefix so that a partner
// accession can be matched against the diagram identifier index.
func NormalizeAccession(acc string) string {
	return resourcePrefix.ReplaceAllString(acc, "")
}
