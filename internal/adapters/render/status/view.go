package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/billaspace/anonxmusic/internal/domain"
)

// SlotStatus is one row of the assistant status table.
type SlotStatus struct {
	Slot           domain.SlotIndex
	Configured     bool
	State          domain.ConnectionState
	Identity       domain.Identity
	SessionPreview string
}

type RenderOptions struct {
	// ShowPreviews includes the masked session string for configured slots.
	ShowPreviews bool
}

func renderView(slots []SlotStatus, opts RenderOptions, s styles) string {
	configured := 0
	live := 0
	for _, slot := range slots {
		if slot.Configured {
			configured++
		}
		if slot.State == domain.StateLive {
			live++
		}
	}

	lines := []string{
		s.title.Render("Assistant Sessions"),
		s.header.Render(fmt.Sprintf("configured: %d/%d  live: %d", configured, domain.MaxSlots, live)),
	}

	if configured == 0 {
		lines = append(lines, s.empty.Render("No session strings configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, slot := range slots {
		if !slot.Configured {
			continue
		}
		lines = append(lines, s.section.Render(renderSlot(slot, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSlot(slot SlotStatus, opts RenderOptions, s styles) string {
	parts := []string{
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.slot.Render(fmt.Sprintf("Assistant %d", slot.Slot)),
			" ",
			stateStyle(slot.State, s).Render(stateLabel(slot.State)),
		),
	}

	if !slot.Identity.IsZero() {
		parts = append(parts, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.metaKey.Render("identity: "),
			s.detail.Render(identityLabel(slot.Identity)),
		))
	}

	if opts.ShowPreviews && slot.SessionPreview != "" {
		parts = append(parts, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.metaKey.Render("session:  "),
			s.preview.Render(slot.SessionPreview),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func stateLabel(state domain.ConnectionState) string {
	switch state {
	case domain.StateUnstarted:
		return "unstarted"
	case domain.StateStarting:
		return "starting"
	case domain.StateLive:
		return "live"
	case domain.StateFailedAuth:
		return "failed (auth)"
	case domain.StateFailedUnreachable:
		return "failed (unreachable)"
	case domain.StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func stateStyle(state domain.ConnectionState, s styles) lipgloss.Style {
	switch state {
	case domain.StateLive:
		return s.live
	case domain.StateFailedAuth, domain.StateFailedUnreachable:
		return s.failed
	default:
		return s.idle
	}
}

func identityLabel(identity domain.Identity) string {
	if identity.Username != "" {
		return fmt.Sprintf("%s (@%s, id %d)", identity.Name, identity.Username, identity.ID)
	}
	return fmt.Sprintf("%s (id %d)", identity.Name, identity.ID)
}

// MaskSession keeps enough of a session string to tell slots apart without
// leaking the credential.
func MaskSession(session string) string {
	trimmed := strings.TrimSpace(session)
	if len(trimmed) <= 12 {
		return strings.Repeat("*", len(trimmed))
	}
	return trimmed[:6] + "…" + trimmed[len(trimmed)-4:]
}
