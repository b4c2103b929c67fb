package googlecse

import (
	"fmt"

	"github.com/creativecommons/quantify/internal/types"
)

// licenseUnits are the six standard CC license elements combinations.
var licenseUnits = []string{"by", "by-sa", "by-nc", "by-nd", "by-nc-sa", "by-nc-nd"}

// licenseVersions are the ported and international license versions
// still commonly linked on the web.
var licenseVersions = []string{"4.0", "3.0", "2.5", "2.0", "1.0"}

// publicDomainPaths are the public domain dedication and mark tools.
var publicDomainPaths = []string{
	"publicdomain/zero/1.0/",
	"publicdomain/mark/1.0/",
}

// DefaultPlan enumerates the legal tool deed URLs whose link counts the
// source collects, in stable order: licenses by unit then version,
// followed by the public domain tools.
func DefaultPlan() []types.Query {
	var plan []types.Query
	for _, unit := range licenseUnits {
		for _, version := range licenseVersions {
			plan = append(plan, types.Query{
				Source: SourceName,
				Term:   fmt.Sprintf("creativecommons.org/licenses/%s/%s/", unit, version),
			})
		}
	}
	for _, path := range publicDomainPaths {
		plan = append(plan, types.Query{
			Source: SourceName,
			Term:   "creativecommons.org/" + path,
		})
	}
	return plan
}
