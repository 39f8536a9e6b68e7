// Package soil describes the soil classes the classifier can return and
// renders classification reports.
package soil

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Class is one soil type known to the classifier.
type Class struct {
	Name        string
	Description string
	Traits      []string
	Crops       []string
}

// Catalogue lists the classes in the order the classifier was trained on.
var Catalogue = []Class{
	{
		Name:        "Alluvial",
		Description: "Deposited by rivers; fertile, well drained and easy to work.",
		Traits:      []string{"rich in potash", "low in nitrogen", "light to dark grey"},
		Crops:       []string{"wheat", "rice", "sugarcane", "maize", "pulses"},
	},
	{
		Name:        "Black",
		Description: "Clay-rich soil formed from basalt that holds moisture well and cracks when dry.",
		Traits:      []string{"high water retention", "rich in lime and magnesium", "poor in phosphorus"},
		Crops:       []string{"cotton", "soybean", "sorghum", "sunflower"},
	},
	{
		Name:        "Clay",
		Description: "Fine particles packed tightly; slow draining and heavy when wet.",
		Traits:      []string{"high nutrient holding", "poor aeration", "prone to waterlogging"},
		Crops:       []string{"rice", "lettuce", "broccoli", "cabbage"},
	},
	{
		Name:        "Red",
		Description: "Coloured by iron oxides; porous and low in organic matter.",
		Traits:      []string{"good drainage", "low in nitrogen and humus", "acidic to neutral"},
		Crops:       []string{"groundnut", "millet", "potato", "pulses"},
	},
	{
		Name:        "Sandy",
		Description: "Coarse particles that drain fast and warm up quickly in spring.",
		Traits:      []string{"low water retention", "leaches nutrients", "easy to cultivate"},
		Crops:       []string{"watermelon", "carrot", "peanut", "potato"},
	},
	{
		Name:        "Loamy",
		Description: "A balanced mix of sand, silt and clay; the most versatile farming soil.",
		Traits:      []string{"holds moisture and drains well", "high organic matter"},
		Crops:       []string{"wheat", "sugarcane", "cotton", "vegetables"},
	},
}

// Lookup returns the class named label, ignoring case and a trailing
// " soil" suffix.
func Lookup(label string) (Class, bool) {
	name := strings.TrimSpace(strings.ToLower(label))
	name = strings.TrimSuffix(name, " soil")
	name = strings.TrimSuffix(name, "_soil")
	for _, c := range Catalogue {
		if strings.ToLower(c.Name) == name {
			return c, true
		}
	}
	return Class{}, false
}

// Report is the data behind a classification report.
type Report struct {
	Farmer        string
	Label         string
	Confidence    float64
	Probabilities map[string]float64
	ImageURL      string
	CreatedAt     time.Time
}

// Markdown renders r for display with a markdown renderer.
func (r Report) Markdown() string {
	var b strings.Builder
	class, known := Lookup(r.Label)
	if known {
		fmt.Fprintf(&b, "# %s soil\n\n", class.Name)
	} else {
		fmt.Fprintf(&b, "# %s\n\n", r.Label)
	}
	if r.Farmer != "" {
		fmt.Fprintf(&b, "**Farmer:** %s  \n", r.Farmer)
	}
	fmt.Fprintf(&b, "**Confidence:** %.1f%%  \n", r.Confidence*100)
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Classified:** %s  \n", r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if r.ImageURL != "" {
		fmt.Fprintf(&b, "**Image:** %s\n", r.ImageURL)
	}
	b.WriteString("\n")

	if known {
		fmt.Fprintf(&b, "%s\n\n## Characteristics\n\n", class.Description)
		for _, t := range class.Traits {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n## Suitable crops\n\n")
		for _, crop := range class.Crops {
			fmt.Fprintf(&b, "- %s\n", crop)
		}
		b.WriteString("\n")
	}

	if len(r.Probabilities) > 0 {
		b.WriteString("## Class probabilities\n\n| Class | Probability |\n|---|---|\n")
		names := make([]string, 0, len(r.Probabilities))
		for n := range r.Probabilities {
			names = append(names, n)
		}
		sort.Slice(names, func(i, j int) bool {
			pi, pj := r.Probabilities[names[i]], r.Probabilities[names[j]]
			if pi != pj {
				return pi > pj
			}
			return names[i] < names[j]
		})
		for _, n := range names {
			fmt.Fprintf(&b, "| %s | %.1f%% |\n", n, r.Probabilities[n]*100)
		}
	}
	return b.String()
}
