package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	statusadapter "github.com/billaspace/anonxmusic/internal/adapters/render/status"
	"github.com/billaspace/anonxmusic/internal/domain"
)

func newStatusCmd(app *app) *cobra.Command {
	var (
		asJSON       bool
		showSessions bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configured assistant slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			slots := slotStatuses(app, showSessions)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(slots)
			}

			rendered, err := app.statusRenderer(slots, statusadapter.RenderOptions{
				ShowPreviews: showSessions,
			})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showSessions, "show-sessions", false, "Include masked session previews")

	return cmd
}

// slotStatuses reports config-time state only. Connection states belong to a
// running process; from the CLI every configured slot shows as unstarted.
func slotStatuses(app *app, withPreviews bool) []statusadapter.SlotStatus {
	slots := make([]statusadapter.SlotStatus, 0, domain.MaxSlots)
	for slot := domain.SlotIndex(1); slot <= domain.MaxSlots; slot++ {
		entry := statusadapter.SlotStatus{Slot: slot, State: domain.StateUnstarted}
		if credential, err := app.credentials.Get(slot); err == nil {
			entry.Configured = true
			if withPreviews {
				entry.SessionPreview = statusadapter.MaskSession(credential.Session)
			}
		}
		slots = append(slots, entry)
	}
	return slots
}
