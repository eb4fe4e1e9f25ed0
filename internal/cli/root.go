package cli

import (
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fleetgate/fleetgate/internal/config"
	"github.com/fleetgate/fleetgate/internal/cost"
	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
	"github.com/fleetgate/fleetgate/internal/providers"
)

var (
	cfgFile      string
	outputFormat string
	noColor      bool
	dryRun       bool

	appConfig *config.Config
	appLogger *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fleetgate",
	Short: "Fleetgate - shared networking for ephemeral dev VM fleets",
	Long: `Fleetgate provisions and reclaims the shared Azure networking
resources an ephemeral dev VM fleet depends on: bastion hosts for private
access and cross-region paths to NFS home storage. Every provisioning run
keeps a rollback ledger; cleanup reclaims resources no live VM still needs
and reports the monthly savings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.fleetgate/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report actions without touching the cloud")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(newEnsureCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newStatusCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		viper.AddConfigPath(home + "/.fleetgate")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FLEETGATE")
	viper.AutomaticEnv()

	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func initApp() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appConfig = cfg
	appLogger = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if viper.GetBool("dry_run") {
		dryRun = true
	}
	return nil
}

// subscriptionID resolves the subscription, flag-less commands fail
// without it.
func subscriptionID() (string, error) {
	if appConfig.Azure.SubscriptionID == "" {
		return "", fmt.Errorf("no subscription configured; set FLEETGATE_SUBSCRIPTION_ID")
	}
	return appConfig.Azure.SubscriptionID, nil
}

func newProvisioner() (*providers.AzureProvisioner, error) {
	sub, err := subscriptionID()
	if err != nil {
		return nil, err
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Azure credential: %w", err)
	}
	return providers.NewAzureProvisioner(sub, cred, appLogger)
}

func newInventory() (*providers.AzureInventory, error) {
	sub, err := subscriptionID()
	if err != nil {
		return nil, err
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Azure credential: %w", err)
	}
	return providers.NewAzureInventory(sub, appConfig.Azure.ResourceGroup, cred, appLogger)
}

// newEstimator prefers Cost Management actuals and degrades to the
// static table when the subscription or credential is unavailable.
func newEstimator() resource.CostEstimator {
	sub, err := subscriptionID()
	if err != nil {
		return cost.NewTable()
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return cost.NewTable()
	}
	estimator, err := cost.NewAzureEstimator(sub, cred, appLogger)
	if err != nil {
		appLogger.ErrorWithErr(err, "Cost Management unavailable, using static estimates")
		return cost.NewTable()
	}
	return estimator
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
