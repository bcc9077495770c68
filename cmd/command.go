package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vehicle2mqtt/config"
	"github.com/kilianp07/vehicle2mqtt/core/commands"
	"github.com/kilianp07/vehicle2mqtt/core/discovery"
	"github.com/kilianp07/vehicle2mqtt/core/model"
	"github.com/kilianp07/vehicle2mqtt/infra/mqtt"
)

var commandOptions string

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Vehicle command related commands",
}

var commandSendCmd = &cobra.Command{
	Use:       "send <name>",
	Short:     "Publish a command on the bridge command topic",
	Args:      cobra.ExactArgs(1),
	ValidArgs: commands.Names(),
	RunE:      runCommandSend,
}

func init() {
	commandSendCmd.Flags().StringVarP(&commandOptions, "options", "o", "", "command options as JSON")
	commandCmd.AddCommand(commandSendCmd)
	rootCmd.AddCommand(commandCmd)
}

// commandMessage builds the message published for name.
func commandMessage(name, options string) ([]byte, error) {
	if !commands.Known(name) {
		return nil, fmt.Errorf("%w: %q", commands.ErrUnknownCommand, name)
	}
	req := commands.Request{Command: name}
	if options != "" {
		if !json.Valid([]byte(options)) {
			return nil, fmt.Errorf("options are not valid JSON")
		}
		req.Options = json.RawMessage(options)
	}
	return json.Marshal(req)
}

func runCommandSend(cmd *cobra.Command, args []string) error {
	payload, err := commandMessage(args[0], commandOptions)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Vehicle.VIN == "" {
		return fmt.Errorf("vehicle vin is required to address the command topic")
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-send-%d", mqttCfg.ClientID, time.Now().UnixNano())
	client, err := mqtt.NewPahoClient(mqttCfg)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	topic := discovery.NewMapper(cfg.Bridge.Prefix, model.Vehicle{VIN: cfg.Vehicle.VIN}).CommandTopic()
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := client.Publish(ctx, topic, payload, false); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", payload, topic)
	return err
}
