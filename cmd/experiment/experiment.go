// Command experiment runs one simulation or chase offline and prints the
// report. Flags set explicitly override the chosen preset.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/Yusufzhafir/illiquid-sim/internal/config"
	logx "github.com/Yusufzhafir/illiquid-sim/internal/infra/log"
	"github.com/Yusufzhafir/illiquid-sim/internal/report"
	simulator "github.com/Yusufzhafir/illiquid-sim/internal/simulation"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/simulation"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
)

const maxChaseCycles = 10_000

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "experiment:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("experiment", flag.ContinueOnError)
	var (
		preset      = fs.String("preset", config.DefaultPresetName, "named parameter preset")
		presetsPath = fs.String("presets", "", "TOML file with [presets.<name>] tables")
		format      = fs.String("format", "text", "output format: text, json, yaml or csv")
		seed        = fs.Uint64("seed", 0, "RNG seed (random when unset)")
		chase       = fs.Bool("chase", false, "run the deterministic chase instead of a simulation")
		fair        = fs.Float64("fair", 40, "chase: fair value")
		start       = fs.Float64("start", 20, "chase: starting algo bid")

		fairPrice   = fs.Float64("fair-price", 0, "fair price of the option")
		initialBid  = fs.Float64("initial-bid", 0, "price of the seeded bid")
		initialAsk  = fs.Float64("initial-ask", 0, "price of the seeded ask")
		initialSize = fs.Int64("initial-size", 0, "size of each seeded level")
		mmSpread    = fs.Float64("mm-spread", 0, "market maker half spread")
		mmSize      = fs.Int64("mm-size", 0, "market maker quote size")
		volatility  = fs.Float64("volatility", 0, "volatility (reported only)")
		steps       = fs.Int("steps", 0, "number of steps")
		humanLimit  = fs.Float64("human-limit", 0, "limit price of the human buy order")
		humanSize   = fs.Int64("human-size", 0, "size of the human buy order")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	out, err := report.ParseFormat(*format)
	if err != nil {
		return err
	}

	if *chase {
		if math.IsNaN(*fair) || math.IsNaN(*start) || math.IsInf(*fair, 0) || math.IsInf(*start, 0) {
			return fmt.Errorf("chase needs finite prices, got fair %v start %v", *fair, *start)
		}
		if *fair-*start > maxChaseCycles {
			return fmt.Errorf("chase from %v to %v is too long", *start, *fair)
		}
		return report.WriteChase(os.Stdout, simulator.SimulateChase(model.Price(*fair), model.Price(*start)), out)
	}

	presets := map[string]model.SimulationConfig{}
	if *presetsPath != "" {
		if presets, err = config.LoadPresets(*presetsPath); err != nil {
			return err
		}
	}
	usecase := simulation.NewSimulationUseCase(context.Background(), simulation.SimulationUseCaseOpts{
		Logger:  logx.NewLogger(config.LogConfig{Level: "warn", Pretty: true}),
		Presets: presets,
	})

	cfg, err := usecase.Preset(*preset)
	if err != nil {
		return err
	}
	req := simulation.RunRequest{Config: &cfg}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			req.Seed = seed
		case "fair-price":
			cfg.FairPrice = model.Price(*fairPrice)
		case "initial-bid":
			cfg.InitialBid = model.Price(*initialBid)
		case "initial-ask":
			cfg.InitialAsk = model.Price(*initialAsk)
		case "initial-size":
			cfg.InitialSize = model.Quantity(*initialSize)
		case "mm-spread":
			cfg.MMSpread = model.Price(*mmSpread)
		case "mm-size":
			cfg.MMSize = model.Quantity(*mmSize)
		case "volatility":
			cfg.Volatility = *volatility
		case "steps":
			cfg.Steps = *steps
		case "human-limit":
			cfg.HumanLimitPrice = model.Price(*humanLimit)
		case "human-size":
			cfg.HumanSize = model.Quantity(*humanSize)
		}
	})

	res, err := usecase.Run(context.Background(), req)
	if err != nil {
		return err
	}
	return report.WriteRun(os.Stdout, *res, out)
}
