package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cul-bridge/internal/bridges/cul"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/config"
	"github.com/nerrad567/cul-bridge/internal/infrastructure/logging"
)

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the bridge.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "culbridge",
		Short: "CUL 868 MHz sensor to MQTT bridge",
		Long: `culbridge - Bridges FS20-style 868 MHz sensor telegrams received by a CUL
stick to MQTT.

Each registered device gets a retained discovery config message and a state
topic carrying ON/OFF. Telegrams from unregistered devices are ignored.

Connection modes (transport.type in the config file):
  serial:    transport.serial.device, e.g. /dev/ttyUSB0
  websocket: transport.websocket.url, e.g. wss://relay.local/cul`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configPath))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (default $CULBRIDGE_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(newDecodeCmd())
	root.AddCommand(newDevicesCmd(&configPath))

	return root
}

// newDecodeCmd decodes a raw receiver frame offline, for checking what a
// sensor sends before adding it to the registry.
func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <frame>",
		Short: "Decode a raw receiver frame and print the telegram as JSON",
		Example: `  culbridge decode F12340011A2
  {"housecode":"12131421","deviceaddress":"1111",...}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame := strings.TrimRight(args[0], "\r\n") + "\r\n"

			t, err := cul.ParseFrame(frame)
			if err != nil {
				return fmt.Errorf("decoding %q: %w", args[0], err)
			}

			out, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding telegram: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// newDevicesCmd manages the SQLite device registry.
func newDevicesCmd(configPath *string) *cobra.Command {
	devices := &cobra.Command{
		Use:   "devices",
		Short: "Manage the device registry database",
		Long: `Manage the cul_devices table used when registry.database.path is set.

The table is read once at startup; restart the bridge after an import.`,
	}

	devices.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the registry with the devices listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadCommandConfig(cmd, *configPath)
			if err != nil {
				return err
			}

			registry, err := cul.LoadRegistryFile(args[0])
			if err != nil {
				return err
			}

			db, err := openRegistryDB(cmd.Context(), cfg.Registry.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := cul.SaveRegistryToDB(cmd.Context(), db, registry); err != nil {
				return fmt.Errorf("saving registry: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d devices into %s\n", registry.Len(), db.Path())
			return nil
		},
	})

	devices.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the devices in the registry database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadCommandConfig(cmd, *configPath)
			if err != nil {
				return err
			}

			db, err := openRegistryDB(cmd.Context(), cfg.Registry.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			registry, err := cul.LoadRegistryFromDB(cmd.Context(), db)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tNAME\tCLASS")
			for _, e := range registry.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Address, e.Name, e.DeviceClass)
			}
			return w.Flush()
		},
	})

	return devices
}

// loadCommandConfig loads the config for a devices subcommand and requires
// a registry database. Logs go to stderr so stdout stays parseable.
func loadCommandConfig(cmd *cobra.Command, flagValue string) (*config.Config, *logging.Logger, error) {
	path := getConfigPath(flagValue)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Registry.Database.Path == "" {
		return nil, nil, fmt.Errorf("registry.database.path is not set in %s", path)
	}

	log := logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr())
	return cfg, log, nil
}
