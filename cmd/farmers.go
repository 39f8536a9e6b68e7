package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/input"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/phone"
	"github.com/marcus/soilnet/internal/validate"
	"github.com/marcus/soilnet/internal/wizard"
	"github.com/spf13/cobra"
)

var farmersCmd = &cobra.Command{
	Use:     "farmers",
	Aliases: []string{"farmer"},
	Short:   "Manage the farmers linked to your consultant account",
	GroupID: "farm",
}

var farmersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List linked farmers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		q, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		list, err := c.ListFarmers(cmdContext(cmd), q, limit, offset)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(list)
		}
		if len(list.Data) == 0 {
			fmt.Println("No farmers found.")
			return nil
		}
		width := output.TerminalWidth(100)
		for i := range list.Data {
			fmt.Println(output.Truncate(output.FormatFarmerShort(&list.Data[i]), width))
		}
		if shown := list.Offset + len(list.Data); shown < list.Total {
			fmt.Printf("\nShowing %d-%d of %d. Use --offset %d for more.\n", list.Offset+1, shown, list.Total, shown)
		}
		return nil
	},
}

var farmersShowCmd = &cobra.Command{
	Use:   "show <farmer-id>",
	Short: "Show a farmer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		f, err := c.GetFarmer(cmdContext(cmd), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(f)
		}
		fmt.Print(output.FormatFarmerLong(f))
		return nil
	},
}

var farmersAddFlags = newSignupFlags()

var farmersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a farmer",
	Long: `Add a farmer to your account. If a farmer account already exists for the
email it is linked instead, and the farmer is notified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}

		ctrl := wizard.NewController(wizard.FarmerCreate)
		values := farmersAddFlags.initialValues(cfg)
		if farmersAddFlags.noInput || !stdinIsTerminal() {
			err = fillWizard(ctrl, values)
		} else {
			for name, v := range values {
				ctrl.Set(name, v)
			}
			err = runWizard(ctrl)
		}
		if err != nil {
			return err
		}

		f, err := c.CreateFarmer(cmdContext(cmd), farmerFromState(ctrl.State()))
		if err != nil {
			return err
		}
		ctrl.Dispatch(wizard.SubmitSucceeded{})
		if jsonOut {
			return output.JSON(f)
		}
		output.Success("Added farmer %s (%s)", f.FullName, f.ID)
		return nil
	},
}

// farmerFromState maps a completed farmer-create wizard to a record.
func farmerFromState(s wizard.State) client.Farmer {
	v := func(name string) string { return strings.TrimSpace(s.Value(name)) }
	size, _ := strconv.ParseFloat(v(wizard.FieldFarmSize), 64)
	return client.Farmer{
		FullName:      v(wizard.FieldFullName),
		Email:         strings.ToLower(v(wizard.FieldEmail)),
		Phone:         phone.Join(v(wizard.FieldPhoneCode), v(wizard.FieldPhone)),
		Country:       strings.ToUpper(v(wizard.FieldCountry)),
		Province:      v(wizard.FieldProvince),
		City:          v(wizard.FieldCity),
		Address:       v(wizard.FieldAddress),
		FarmName:      v(wizard.FieldFarmName),
		FarmSizeAcres: size,
		Crops:         v(wizard.FieldCrops),
	}
}

var farmersEditCmd = &cobra.Command{
	Use:   "edit <farmer-id>",
	Short: "Change a farmer's details",
	Example: `  soilnet farmers edit fa_123 --crops "wheat, cotton" --farm-size 15`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		upd, err := farmerUpdateFromFlags(cmd)
		if err != nil {
			return err
		}
		f, err := c.UpdateFarmer(cmdContext(cmd), args[0], upd)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(f)
		}
		output.Success("Updated farmer %s", f.ID)
		fmt.Print(output.FormatFarmerLong(f))
		return nil
	},
}

// farmerEditFlags maps farmer-create fields to the edit flags that set them.
// Values must pass the field's rules.
var farmerEditFlags = map[string]string{
	wizard.FieldFullName: "name",
	wizard.FieldPhone:    "phone",
	wizard.FieldCountry:  "country",
	wizard.FieldProvince: "province",
	wizard.FieldCity:     "city",
	wizard.FieldAddress:  "address",
	wizard.FieldFarmName: "farm-name",
	wizard.FieldFarmSize: "farm-size",
	wizard.FieldCrops:    "crops",
}

func farmerUpdateFromFlags(cmd *cobra.Command) (client.FarmerUpdate, error) {
	var upd client.FarmerUpdate
	values := map[string]string{}
	var fields []validate.Field

	// Flow order keeps the error list stable.
	for _, f := range wizard.FarmerCreate.Fields() {
		flag, ok := farmerEditFlags[f.Name]
		if !ok || !cmd.Flags().Changed(flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(flag)
		if f.Name == wizard.FieldPhone {
			split := map[string]string{}
			prefillPhone(split, v)
			values[wizard.FieldPhoneCode] = split[wizard.FieldPhoneCode]
			values[wizard.FieldPhone] = split[wizard.FieldPhone]
		} else {
			values[f.Name] = strings.TrimSpace(v)
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return upd, errors.New("nothing to change; pass at least one flag")
	}
	if res := validate.Step(fields, values); !res.OK() {
		return upd, errors.New(strings.Join(res.Errors, "; "))
	}

	str := func(field string) *string {
		v, ok := values[field]
		if !ok {
			return nil
		}
		return &v
	}
	upd.FullName = str(wizard.FieldFullName)
	upd.Province = str(wizard.FieldProvince)
	upd.City = str(wizard.FieldCity)
	upd.Address = str(wizard.FieldAddress)
	upd.FarmName = str(wizard.FieldFarmName)
	upd.Crops = str(wizard.FieldCrops)
	if v, ok := values[wizard.FieldCountry]; ok {
		v = strings.ToUpper(v)
		upd.Country = &v
	}
	if _, ok := values[wizard.FieldPhone]; ok {
		p := phone.Join(values[wizard.FieldPhoneCode], values[wizard.FieldPhone])
		upd.Phone = &p
	}
	if v, ok := values[wizard.FieldFarmSize]; ok {
		size, _ := strconv.ParseFloat(v, 64)
		upd.FarmSizeAcres = &size
	}
	return upd, nil
}

var farmersRmCmd = &cobra.Command{
	Use:     "rm <farmer-id>...",
	Aliases: []string{"delete"},
	Short:   "Remove farmers",
	Long: `Remove farmers. Ids may be given as arguments, read from a file with
@path, or read from stdin with -.`,
	Example: `  soilnet farmers rm fa_123
  soilnet farmers list --search multan | soilnet farmers rm --yes -`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		ids, err := input.ExpandArgs(args, os.Stdin)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return errors.New("no farmer ids given")
		}
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			if !stdinIsTerminal() {
				return errors.New("pass --yes to confirm deletion")
			}
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %d farmer(s): %s?", len(ids), strings.Join(ids, ", "))).
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Cancelled.")
				return nil
			}
		}
		for _, id := range ids {
			if err := c.DeleteFarmer(cmdContext(cmd), id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			output.Success("Deleted farmer %s", id)
		}
		return nil
	},
}

func init() {
	farmersListCmd.Flags().StringP("search", "s", "", "filter by name, email or farm")
	farmersListCmd.Flags().Int("limit", 50, "page size")
	farmersListCmd.Flags().Int("offset", 0, "skip this many farmers")

	farmersAddFlags.register(farmersAddCmd, wizard.FarmerCreate)

	for field, flag := range farmerEditFlags {
		usage := "new " + strings.ReplaceAll(flag, "-", " ")
		if field == wizard.FieldPhone {
			usage = "new full phone number"
		}
		farmersEditCmd.Flags().String(flag, "", usage)
	}

	farmersRmCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	farmersCmd.AddCommand(farmersListCmd, farmersShowCmd, farmersAddCmd, farmersEditCmd, farmersRmCmd)
	rootCmd.AddCommand(farmersCmd)
}
