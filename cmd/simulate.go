package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vehicle2mqtt/infra/logger"
	"github.com/kilianp07/vehicle2mqtt/infra/vehicleapi"
)

var (
	simAddr  string
	simPolls int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a simulated vehicle API for local testing",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simAddr, "addr", ":8080", "listen address")
	simulateCmd.Flags().IntVar(&simPolls, "polls", 1, "status polls before a command completes")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("simulate")

	srv := &http.Server{Addr: simAddr, Handler: vehicleapi.NewSimulator(simPolls), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("simulator shutdown: %v", err)
		}
	}()
	log.Infof("simulated vehicle API on %s", simAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
