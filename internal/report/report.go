// Package report renders finished runs and chase results for terminals and
// exports.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	TEXT Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case TEXT, JSON, YAML, CSV:
		return f, nil
	case "":
		return TEXT, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json, yaml or csv)", s)
	}
}

// FillSummary is the one-line outcome of the human order.
func FillSummary(pos model.HumanPosition, pnl *float64) string {
	if !pos.Filled() || pos.AverageFillPrice == nil || pnl == nil {
		return "Human order did not fill."
	}
	return fmt.Sprintf("Filled %d @ %.2f | P&L vs fair: %.2f", pos.FilledQuantity, *pos.AverageFillPrice, *pnl)
}

func ChaseSummary(res model.ChaseResult) string {
	return fmt.Sprintf("Human bought at %.2f, fair value %.2f, loss = %.2f",
		float64(res.HumanBuyPrice), float64(res.FairValue), float64(res.Loss))
}

func WriteRun(w io.Writer, r model.RunReport, format Format) error {
	switch format {
	case JSON:
		return writeJSON(w, r)
	case YAML:
		return writeYAML(w, r)
	case CSV:
		return writeRunCSV(w, r)
	default:
		return writeRunText(w, r)
	}
}

func WriteChase(w io.Writer, res model.ChaseResult, format Format) error {
	switch format {
	case JSON:
		return writeJSON(w, res)
	case YAML:
		return writeYAML(w, res)
	case CSV:
		return writeChaseCSV(w, res)
	default:
		return writeChaseText(w, res)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeRunText(w io.Writer, r model.RunReport) error {
	cfg := r.Config
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run %s (seed %d, %d steps)\n", r.ID, r.Seed, cfg.Steps)
	fmt.Fprintf(tw, "Fair %.2f | MM spread %.2f x %d | Human limit %.2f x %d\n\n",
		float64(cfg.FairPrice), float64(cfg.MMSpread), cfg.MMSize, float64(cfg.HumanLimitPrice), cfg.HumanSize)

	fmt.Fprintln(tw, "time\tbid\task\tmid\t")
	for _, s := range r.Result.History {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", s.Time, price(s.BestBid), price(s.BestAsk), price(s.Mid))
	}
	fmt.Fprintln(tw)

	if len(r.Result.Trades) == 0 {
		fmt.Fprintln(tw, "No trades.")
	} else {
		fmt.Fprintln(tw, "time\tprice\tsize\tside\t")
		for _, tr := range r.Result.Trades {
			fmt.Fprintf(tw, "%d\t%.2f\t%d\t%s\t\n", tr.Time, float64(tr.Price), tr.Size, tr.Side)
		}
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, FillSummary(r.Result.Position, r.Result.PnL))
	return tw.Flush()
}

// writeRunCSV emits samples and trades as one tidy table keyed by kind.
func writeRunCSV(w io.Writer, r model.RunReport) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"kind", "time", "bid", "ask", "mid", "price", "size", "side"})
	for _, s := range r.Result.History {
		_ = cw.Write([]string{"sample", strconv.Itoa(s.Time), csvPrice(s.BestBid), csvPrice(s.BestAsk), csvPrice(s.Mid), "", "", ""})
	}
	for _, tr := range r.Result.Trades {
		p := tr.Price
		_ = cw.Write([]string{"trade", strconv.Itoa(tr.Time), "", "", "", csvPrice(&p), strconv.FormatInt(int64(tr.Size), 10), string(tr.Side)})
	}
	cw.Flush()
	return cw.Error()
}

func writeChaseText(w io.Writer, res model.ChaseResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "step\talgo buy\talgo sell\thuman\t")
	rows := append([]model.ChaseStep{res.Start}, res.Steps...)
	rows = append(rows, res.Final)
	for _, s := range rows {
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%s\t\n", s.Step, float64(s.AlgoBuy), float64(s.AlgoSell), price(s.HumanPrice))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, ChaseSummary(res))
	return tw.Flush()
}

func writeChaseCSV(w io.Writer, res model.ChaseResult) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"step", "algo_buy", "algo_sell", "human_price"})
	rows := append([]model.ChaseStep{res.Start}, res.Steps...)
	rows = append(rows, res.Final)
	for _, s := range rows {
		buy, sell := s.AlgoBuy, s.AlgoSell
		_ = cw.Write([]string{strconv.Itoa(s.Step), csvPrice(&buy), csvPrice(&sell), csvPrice(s.HumanPrice)})
	}
	cw.Flush()
	return cw.Error()
}

func price(p *model.Price) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(float64(*p), 'f', 2, 64)
}

func csvPrice(p *model.Price) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(float64(*p), 'f', -1, 64)
}
