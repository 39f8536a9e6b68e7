package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/soilnet/internal/countries"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/phone"
	"github.com/spf13/cobra"
)

var phoneCmd = &cobra.Command{
	Use:     "phone",
	Short:   "Phone number helpers",
	GroupID: "tools",
}

// phoneParseResult is the JSON form of a parsed number.
type phoneParseResult struct {
	Input            string `json:"input"`
	CallingCode      string `json:"calling_code"`
	SubscriberNumber string `json:"subscriber_number"`
	Normalized       string `json:"normalized"`
	Outcome          string `json:"outcome"`
	Country          string `json:"country"`
}

var phoneParseCmd = &cobra.Command{
	Use:   "parse <number>...",
	Short: "Split phone numbers into calling code and subscriber number",
	Example: `  soilnet phone parse +923001234567 +12425551234
  soilnet phone parse 03001234567`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list := countries.All()
		out := make([]phoneParseResult, len(args))
		for i, in := range args {
			p := phone.Parse(in, list)
			country := phone.InferCountry(in, list)
			out[i] = phoneParseResult{
				Input:            in,
				CallingCode:      p.CallingCode,
				SubscriberNumber: p.SubscriberNumber,
				Normalized:       p.String(),
				Outcome:          p.Outcome.String(),
				Country:          country.ISOCode,
			}
		}
		if jsonOut {
			return output.JSON(out)
		}
		for _, r := range out {
			fmt.Printf("%s\n  code: %s  number: %s  country: %s %s  (%s)\n",
				r.Input, r.CallingCode, r.SubscriberNumber, countries.Flag(r.Country), r.Country, r.Outcome)
		}
		return nil
	},
}

var countriesCmd = &cobra.Command{
	Use:     "countries [search]",
	Short:   "List countries and their calling codes",
	GroupID: "tools",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := ""
		if len(args) == 1 {
			q = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(args[0]), "+"))
		}
		var matched []countries.Record
		for _, r := range countries.All() {
			if q == "" || strings.Contains(strings.ToLower(r.Name), q) ||
				strings.EqualFold(r.ISOCode, q) || r.CallingCode == q {
				matched = append(matched, r)
			}
		}
		if jsonOut {
			return output.JSON(matched)
		}
		for _, r := range matched {
			fmt.Printf("%s %-3s %-6s %s\n", r.Flag, r.ISOCode, r.PrefixedCode(), r.Name)
		}
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:     "ping",
	Short:   "Check that the server is reachable",
	GroupID: "tools",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := newClient(false)
		if err != nil {
			return err
		}
		h, err := c.HealthCheck(cmdContext(cmd))
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Server(), err)
		}
		output.Success("%s is %s", cfg.Server(), h.Status)
		return nil
	},
}

func init() {
	phoneCmd.AddCommand(phoneParseCmd)
	rootCmd.AddCommand(phoneCmd, countriesCmd, pingCmd)
}
