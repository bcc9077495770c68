package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vehicle2mqtt/config"
	"github.com/kilianp07/vehicle2mqtt/core/model"
	"github.com/kilianp07/vehicle2mqtt/infra/vehicleapi"
)

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "Vehicle related commands",
}

var vehiclesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the vehicles of the account",
	RunE:  runVehiclesLs,
}

func init() {
	vehiclesCmd.AddCommand(vehiclesLsCmd)
	rootCmd.AddCommand(vehiclesCmd)
}

func runVehiclesLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := vehicleapi.New(cfg.Vehicle)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	res, err := client.GetAccountVehicles(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range res.Vehicles() {
		m := model.FromAPI(v)
		if _, err := fmt.Fprintf(out, "%s\t%s\t%d diagnostics\n", m.VIN, m, len(m.SupportedDiagnostics)); err != nil {
			return err
		}
	}
	return nil
}
