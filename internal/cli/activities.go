package cli

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your activities",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			activities, err := a.client.ListActivities(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing activities: %w", err)
			}
			if a.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), activities)
			}
			return printActivities(cmd.OutOrStdout(), activities)
		},
	}
}

func (a *app) newAddCommand() *cobra.Command {
	var unit, deadline string

	cmd := &cobra.Command{
		Use:   "add <type> <quantity>",
		Short: "Record a new activity",
		Long: `Record a new activity. The unit defaults to the first unit of the type.

  footprint add Travel 12 --unit miles
  footprint add Water 40 --deadline 2030-06-01`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}

			quantity, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			activityType := args[0]
			if unit == "" {
				unit = DefaultUnit(activityType)
			}

			f := form{ActivityType: &activityType, Quantity: &quantity, Unit: &unit}
			if deadline != "" {
				f.Deadline = &deadline
			}
			if err := f.validate(a.now(), false); err != nil {
				return err
			}

			created, err := a.client.CreateActivity(cmd.Context(), f.request())
			if err != nil {
				return fmt.Errorf("creating activity: %w", err)
			}
			if a.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), created)
			}
			return printActivity(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Unit of measure")
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "Target date (YYYY-MM-DD), not in the past")
	return cmd
}

func (a *app) newEditCommand() *cobra.Command {
	var activityType, quantityRaw, unit, deadline string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an activity",
		Long: `Change fields of an activity. Only the flags you pass are sent.

  footprint edit 3f2c... --quantity 0
  footprint edit 3f2c... --type Gas --unit m³`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}

			var f form
			flags := cmd.Flags()
			if flags.Changed("type") {
				f.ActivityType = &activityType
			}
			if flags.Changed("quantity") {
				q, err := parseQuantity(quantityRaw)
				if err != nil {
					return err
				}
				f.Quantity = &q
			}
			if flags.Changed("unit") {
				f.Unit = &unit
			}
			if flags.Changed("deadline") {
				f.Deadline = &deadline
			}
			if f == (form{}) {
				return fmt.Errorf("nothing to change: pass at least one of --type, --quantity, --unit, --deadline")
			}
			if err := f.validate(a.now(), true); err != nil {
				return err
			}

			updated, err := a.client.UpdateActivity(cmd.Context(), args[0], f.request())
			if err != nil {
				return fmt.Errorf("updating activity: %w", err)
			}
			if a.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), updated)
			}
			return printActivity(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVarP(&activityType, "type", "t", "", "Activity type")
	cmd.Flags().StringVarP(&quantityRaw, "quantity", "q", "", "Quantity (zero is allowed)")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Unit of measure")
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "Target date (YYYY-MM-DD), not in the past")
	return cmd
}

func (a *app) newRemoveCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an activity",
		Long: `Delete an activity you own.

  footprint rm 3f2c...
  footprint rm 3f2c... --force     Skip confirmation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}

			id := args[0]
			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete activity %s? This cannot be undone. [y/N] ", id)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			msg, err := a.client.DeleteActivity(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("deleting activity: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Show activity types and their units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range ActivityTypes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", t, strings.Join(Units[t], ", "))
			}
			return nil
		},
	}
}

func parseQuantity(raw string) (float64, error) {
	q, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, FormErrors{"quantity": "quantity must be a non-negative number"}
	}
	return q, nil
}
