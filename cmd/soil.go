package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/soil"
	"github.com/marcus/soilnet/internal/tui/results"
	"github.com/spf13/cobra"
)

var soilCmd = &cobra.Command{
	Use:     "soil",
	Short:   "Classify soil images and view the results",
	GroupID: "farm",
}

var soilClassifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Upload a soil photo for classification",
	Long: `Upload a soil photo for classification. Consultants pass --farmer to say
whose field the photo is from; farmers classify their own soil.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		farmerID, _ := cmd.Flags().GetString("farmer")
		res, err := c.Classify(cmdContext(cmd), farmerID, args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(res)
		}
		output.Success("Classified as %s (%s)", res.Label, output.FormatConfidence(res.Confidence))
		printProbabilities(res)
		fmt.Printf("\nResult id: %s  (soilnet soil show %s)\n", res.ID, res.ID)
		return nil
	},
}

var soilResultsCmd = &cobra.Command{
	Use:     "results",
	Aliases: []string{"ls"},
	Short:   "List classification results",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		since, err := sinceFlag(cmd)
		if err != nil {
			return err
		}
		farmerID, _ := cmd.Flags().GetString("farmer")
		list, err := c.ListSoilResults(cmdContext(cmd), farmerID)
		if err != nil {
			return err
		}
		list = resultsSince(list, since)
		if jsonOut {
			return output.JSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No soil results yet.")
			return nil
		}
		width := output.TerminalWidth(100)
		for i := range list {
			fmt.Println(output.Truncate(output.FormatSoilResultShort(&list[i]), width))
		}
		return nil
	},
}

var soilShowCmd = &cobra.Command{
	Use:   "show <result-id>",
	Short: "Show a classification report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		ctx := cmdContext(cmd)
		res, err := c.GetSoilResult(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(res)
		}

		report := soil.Report{
			Label:         res.Label,
			Confidence:    res.Confidence,
			Probabilities: res.Probabilities,
			ImageURL:      res.ImageURL,
			CreatedAt:     res.CreatedAt,
		}
		// the farmer lookup is consultant-only; farmers see their own report
		if f, err := c.GetFarmer(ctx, res.FarmerID); err == nil {
			report.Farmer = f.FullName
		}
		rendered, err := output.RenderSoilReport(report)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

var soilBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse classification results interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		ctx := cmdContext(cmd)
		farmerID, _ := cmd.Flags().GetString("farmer")
		interval, _ := cmd.Flags().GetDuration("interval")

		names := map[string]string{}
		if cfg.Auth.Role == "consultant" {
			if list, err := c.ListFarmers(ctx, "", 500, 0); err == nil {
				for _, f := range list.Data {
					names[f.ID] = f.FullName
				}
			}
		}

		model := results.NewModel(ctx, c, farmerID, names, interval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		_, err = p.Run()
		return err
	},
}

func printProbabilities(res *client.SoilResult) {
	if len(res.Probabilities) == 0 {
		return
	}
	fmt.Print(output.SectionHeader("probabilities"))
	for _, line := range output.IndentLines(output.ProbabilityBars(res.Probabilities, 30), 2) {
		fmt.Println(line)
	}
	if class, ok := soil.Lookup(res.Label); ok {
		fmt.Print(output.SectionHeader("suitable crops"))
		for _, line := range output.BulletList(class.Crops, 2) {
			fmt.Println(line)
		}
	}
}

func init() {
	soilClassifyCmd.Flags().String("farmer", "", "farmer id (required for consultants)")
	soilResultsCmd.Flags().String("farmer", "", "only this farmer's results")
	soilResultsCmd.Flags().String("since", "", sinceUsage)
	soilBrowseCmd.Flags().String("farmer", "", "only this farmer's results")
	soilBrowseCmd.Flags().Duration("interval", 30*time.Second, "refresh interval (0 disables)")

	soilCmd.AddCommand(soilClassifyCmd, soilResultsCmd, soilShowCmd, soilBrowseCmd)
	rootCmd.AddCommand(soilCmd)
}
