package main

import (
	"flag"
	"time"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"orgfolio/internal/date"
)

// dayFlags take a YYYY-MM-DD value; completion offers today.
var dayFlags = map[string]bool{"d": true, "from": true, "to": true}

// completionTree mirrors the registered commands and their flags so that
// shells can complete them. Install with COMP_INSTALL=1 orgfolioctl.
func completionTree(global *flag.FlagSet, cmds []subcommands.Command) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagPredictors(global),
	}
	for _, c := range cmds {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		root.Sub[c.Name()] = &complete.Command{Flags: flagPredictors(fs)}
	}

	names := make([]string, 0, len(root.Sub))
	for name := range root.Sub {
		names = append(names, name)
	}
	for _, builtin := range []string{"help", "flags", "commands"} {
		root.Sub[builtin] = &complete.Command{Args: predict.Set(names)}
	}
	return root
}

func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	out := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		switch {
		case isBoolFlag(f):
			out[f.Name] = predict.Nothing
		case dayFlags[f.Name]:
			out[f.Name] = predict.Set{date.Of(time.Now()).String()}
		default:
			out[f.Name] = predict.Something
		}
	})
	return out
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}
