package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nettrace-go/nettrace/classify"
	"github.com/nettrace-go/nettrace/log"
	"github.com/nettrace-go/nettrace/trace"
	"github.com/nettrace-go/nettrace/wireformat"
)

type args struct {
	kind                  string
	family                string
	maxHops               int
	maxRetries            int
	timeoutSeconds        int
	probesPerHop          int
	minTTL                int
	port                  int
	jsonOutput            bool
	reverseDNS            bool
	collectSourcePublicIP bool
	verbose               bool
	cfgFile               string
}

var Args args

var rootCmd = &cobra.Command{
	Use:   "nettrace [target]",
	Short: "Multi-flavor network path discovery",
	Args:  cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		applyViperOverrides(cmd)
		return nil
	},
	RunE: func(cmd *cobra.Command, cliArgs []string) error {
		log.SetVerbose(Args.verbose)

		kind, err := parseKind(Args.kind)
		if err != nil {
			return err
		}
		family := wireformat.V4
		if Args.family == "v6" {
			family = wireformat.V6
		}

		printOutput := !Args.jsonOutput
		opts := trace.Options{
			Kind:                  kind,
			Family:                family,
			MaxHops:               Args.maxHops,
			MaxRetries:            Args.maxRetries,
			TimeoutSeconds:        Args.timeoutSeconds,
			ProbesPerHop:          Args.probesPerHop,
			MinTTL:                Args.minTTL,
			DestinationPort:       uint16(Args.port),
			ReverseDNSLookup:      Args.reverseDNS,
			CollectSourcePublicIP: Args.collectSourcePublicIP,
			PrintOutput:           &printOutput,
		}

		t, err := trace.Run(cmd.Context(), cliArgs[0], opts)
		if t == nil {
			return err
		}

		if Args.jsonOutput {
			out, marshalErr := json.MarshalIndent(t, "", "  ")
			if marshalErr != nil {
				return fmt.Errorf("JSON marshalling failed: %w", marshalErr)
			}
			fmt.Println(string(out))
		}

		if err != nil {
			if ce := classify.Classify(err); ce != nil && ce.Code == classify.CodeMaxHopsExceeded {
				return nil
			}
			return err
		}
		return nil
	},
}

// applyViperOverrides fills any flag the caller did not pass on the
// command line from config-file/environment values, leaving explicit
// flags as the highest-precedence source.
func applyViperOverrides(cmd *cobra.Command) {
	set := func(name string, dst *string) {
		if !cmd.Flags().Changed(name) && viper.IsSet(name) {
			*dst = viper.GetString(name)
		}
	}
	setInt := func(name string, dst *int) {
		if !cmd.Flags().Changed(name) && viper.IsSet(name) {
			*dst = viper.GetInt(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if !cmd.Flags().Changed(name) && viper.IsSet(name) {
			*dst = viper.GetBool(name)
		}
	}

	set("kind", &Args.kind)
	set("family", &Args.family)
	setInt("max-hops", &Args.maxHops)
	setInt("max-retries", &Args.maxRetries)
	setInt("timeout", &Args.timeoutSeconds)
	setInt("probes-per-hop", &Args.probesPerHop)
	setInt("min-ttl", &Args.minTTL)
	setInt("port", &Args.port)
	setBool("json", &Args.jsonOutput)
	setBool("reverse-dns", &Args.reverseDNS)
	setBool("collect-public-ip", &Args.collectSourcePublicIP)
}

func parseKind(s string) (wireformat.ProbeKind, error) {
	switch s {
	case "echo":
		return wireformat.KindEcho, nil
	case "datagram", "":
		return wireformat.KindDatagram, nil
	case "stream":
		return wireformat.KindStream, nil
	default:
		return 0, fmt.Errorf("unknown probe kind %q", s)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		if Args.cfgFile != "" {
			viper.SetConfigFile(Args.cfgFile)
		} else {
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName("nettrace")
		}

		viper.SetEnvPrefix("nettrace")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()

		if err := viper.ReadInConfig(); err == nil {
			log.Debugf("cmd: using config file %s", viper.ConfigFileUsed())
		}
	})

	rootCmd.PersistentFlags().StringVarP(&Args.cfgFile, "config", "c", "", "config file (YAML)")
	rootCmd.Flags().StringVar(&Args.kind, "kind", "datagram", "probe flavor (echo, datagram, stream)")
	rootCmd.Flags().StringVar(&Args.family, "family", "v4", "address family (v4, v6)")
	rootCmd.Flags().IntVar(&Args.maxHops, "max-hops", 20, "upper hop bound")
	rootCmd.Flags().IntVar(&Args.maxRetries, "max-retries", 3, "per-hop retry count on total timeout")
	rootCmd.Flags().IntVar(&Args.timeoutSeconds, "timeout", 1, "per-probe wait, in seconds")
	rootCmd.Flags().IntVar(&Args.probesPerHop, "probes-per-hop", 3, "parallel probes per TTL")
	rootCmd.Flags().IntVar(&Args.minTTL, "min-ttl", 1, "starting TTL")
	rootCmd.Flags().IntVarP(&Args.port, "port", "p", 0, "destination port (defaults to the probe kind's standard port)")
	rootCmd.Flags().BoolVar(&Args.jsonOutput, "json", false, "emit the trace as JSON instead of rendering it")
	rootCmd.Flags().BoolVar(&Args.reverseDNS, "reverse-dns", false, "resolve hop source addresses to names")
	rootCmd.Flags().BoolVar(&Args.collectSourcePublicIP, "collect-public-ip", false, "learn the publicly visible source address")
	rootCmd.Flags().BoolVarP(&Args.verbose, "verbose", "v", false, "verbose logging")

	bindFlag := func(name string) {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
	for _, name := range []string{
		"kind", "family", "max-hops", "max-retries", "timeout",
		"probes-per-hop", "min-ttl", "port", "json", "reverse-dns",
		"collect-public-ip",
	} {
		bindFlag(name)
	}
}
