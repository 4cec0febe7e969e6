package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "anonx",
		Short:         "anonx: Telegram group-call music bot with assistant accounts",
		Long:          "anonx runs a Telegram music bot backed by up to five assistant accounts. It manages assistant session lifecycles, broadcasts to served chats, and enforces global bans.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newStatusCmd(app),
	)

	return rootCmd
}
