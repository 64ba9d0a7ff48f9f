package alert

import (
	"fmt"
	"strings"

	"rektflow/internal/classify"
	"rektflow/internal/model"
)

func tierEmoji(tier classify.Tier) string {
	switch tier {
	case classify.TierMax:
		return "🚨🚨🚨"
	case classify.TierHigh:
		return "🚨🚨"
	case classify.TierMedium:
		return "🚨"
	default:
		return "⚡"
	}
}

func sideEmoji(side model.Side) string {
	if side == model.SideLong {
		return "🔴 LONGS REKT"
	}
	return "🟢 SHORTS REKT"
}

func labelEmoji(label classify.Label) string {
	switch label {
	case classify.LabelBuildUp:
		return "📈"
	case classify.LabelCloseOut:
		return "📉"
	case classify.LabelCrowdedLongs, classify.LabelCrowdedShorts:
		return "🔥"
	case classify.LabelNoData:
		return "❔"
	default:
		return "↔️"
	}
}

// formatPrice picks a precision that keeps small-cap prices readable
// without drowning large-cap prices in decimals.
func formatPrice(p float64) string {
	switch {
	case p < 0.0001:
		return fmt.Sprintf("%.8f", p)
	case p < 0.01:
		return fmt.Sprintf("%.6f", p)
	case p < 1:
		return fmt.Sprintf("%.4f", p)
	case p < 100:
		return fmt.Sprintf("%.2f", p)
	default:
		return fmt.Sprintf("%.0f", p)
	}
}

// groupThousands inserts commas into the integer part of a formatted
// number.
func groupThousands(s string) string {
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}

func formatUSD(v float64) string {
	return "$" + groupThousands(fmt.Sprintf("%.0f", v))
}

// FormatMessage renders the Telegram alert in HTML parse mode.
func FormatMessage(task model.AlertTask, tier classify.Tier, label classify.Label, oiDelta, funding *float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>REKT ALERT [%s]</b>\n\n", tierEmoji(tier), tier)
	fmt.Fprintf(&b, "%s <b>%s</b>\n", sideEmoji(task.Side), task.Symbol)
	fmt.Fprintf(&b, "💰 Size: <b>%s</b>\n", formatUSD(task.TotalUSD))
	fmt.Fprintf(&b, "💵 Price: <b>$%s</b>\n", groupThousands(formatPrice(task.Price)))

	if oiDelta != nil {
		fmt.Fprintf(&b, "📊 OI Change: <b>%+.2f%%</b>\n", *oiDelta)
	} else {
		b.WriteString("📊 OI Change: <b>⚠️ N/A</b>\n")
	}
	if funding != nil {
		fmt.Fprintf(&b, "💸 Funding: <b>%+.4f%%</b>\n", *funding)
	}

	fmt.Fprintf(&b, "\n%s <b>%s</b>", labelEmoji(label), label)
	return b.String()
}
