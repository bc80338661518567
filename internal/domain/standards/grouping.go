package standards

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AreaLabels maps educational-area keys to display labels
type AreaLabels map[string]string

// DefaultAreaLabels are the labels for the well-known areas
var DefaultAreaLabels = AreaLabels{
	AreaMedicalSchool:           "Medical School",
	AreaNursing:                 "Nursing",
	AreaK12:                     "K-12",
	AreaHigherEducation:         "Higher Education",
	AreaProfessionalDevelopment: "Professional Development",
	AreaCorporateTraining:       "Corporate Training",
}

// Label returns the display label for area, falling back to the raw key
func (l AreaLabels) Label(area string) string {
	if label, ok := l[area]; ok && label != "" {
		return label
	}
	return area
}

// AreaGroup holds the frameworks of one educational area split by official status
type AreaGroup struct {
	Area     string
	Label    string
	Official []*Framework
	Custom   []*Framework
}

// GroupFrameworks groups frameworks by educational area. Each list is sorted
// by framework name and groups are sorted by display label, both with the
// collation rules of tag. Frameworks without a known area are kept under
// their raw area string.
func GroupFrameworks(frameworks []*Framework, labels AreaLabels, tag language.Tag) []AreaGroup {
	if labels == nil {
		labels = DefaultAreaLabels
	}
	col := collate.New(tag, collate.IgnoreCase)

	index := make(map[string]int)
	groups := make([]AreaGroup, 0)
	for _, f := range frameworks {
		i, ok := index[f.EducationalArea]
		if !ok {
			i = len(groups)
			index[f.EducationalArea] = i
			groups = append(groups, AreaGroup{
				Area:     f.EducationalArea,
				Label:    labels.Label(f.EducationalArea),
				Official: []*Framework{},
				Custom:   []*Framework{},
			})
		}
		if f.IsOfficial {
			groups[i].Official = append(groups[i].Official, f)
		} else {
			groups[i].Custom = append(groups[i].Custom, f)
		}
	}

	byName := func(list []*Framework) {
		sort.SliceStable(list, func(a, b int) bool {
			if c := col.CompareString(list[a].Name, list[b].Name); c != 0 {
				return c < 0
			}
			return list[a].ID.String() < list[b].ID.String()
		})
	}
	for i := range groups {
		byName(groups[i].Official)
		byName(groups[i].Custom)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if c := col.CompareString(groups[a].Label, groups[b].Label); c != 0 {
			return c < 0
		}
		return groups[a].Area < groups[b].Area
	})
	return groups
}
