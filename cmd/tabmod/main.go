// Command tabmod loads a delimited-text or workbook file, applies a header
// mapping (identity by default), and saves the transformed table. It is a
// thin synchronous front-end over the internal/engine processing engine —
// the desktop UI and its drag-and-drop mapping editor are this system's
// other, out-of-scope front-end.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tabmod/tabmod/internal/config"
	"github.com/tabmod/tabmod/internal/engine"
	"github.com/tabmod/tabmod/internal/mapping"
	"github.com/tabmod/tabmod/internal/metrics"
	"github.com/tabmod/tabmod/internal/state"
	"github.com/tabmod/tabmod/pkg/eventbus"
	"github.com/tabmod/tabmod/pkg/log"
	"github.com/tabmod/tabmod/pkg/tabular"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tabmod", flag.ContinueOnError)

	var lang string
	fs.StringVar(&lang, "lang", "en", "Language code for messages")
	fs.StringVar(&lang, "l", "en", "Language code for messages (shorthand)")

	var configFile string
	fs.StringVar(&configFile, "config", "./config.json", "Overwrite the default options by those in `config.json`")

	var mappingFile string
	fs.StringVar(&mappingFile, "mapping", "", "Path to a processing-context JSON document; defaults to an identity mapping over the input's headers")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: tabmod [flags] <input_path> <output_path>\n")
		fs.PrintDefaults()
		return 2
	}
	inputPath, outputPath := fs.Arg(0), fs.Arg(1)

	if err := config.Init(configFile); err != nil {
		log.Errorf("tabmod: config: %v", err)
		return 1
	}
	log.Infof("tabmod: processing %s (lang=%s)", inputPath, lang)

	bus := eventbus.Default()
	st := state.New(bus)
	st.Controls.Set("processing.strict", config.Keys.Strict)
	st.Controls.Set("processing.strict_per_slot", config.Keys.StrictPerSlot)
	st.Controls.Set("processing.chunk_size", config.Keys.ChunkSize)
	st.Controls.Set("processing.csv_delimiter", config.Keys.CSVDelimiter)
	factory := tabular.DefaultFactory()
	eng := engine.New(bus, st, factory, metrics.Default(), tabular.DefaultSchemaCache())

	exitCode := 0
	offComplete, _ := bus.On(engine.TopicComplete, func(sender, topic string, payload eventbus.Payload) {
		fmt.Printf("done: %v\n", payload["path"])
	})
	offError, _ := bus.On(engine.TopicError, func(sender, topic string, payload eventbus.Payload) {
		fmt.Fprintf(os.Stderr, "error: %v\n", payload["msg"])
		exitCode = 1
	})
	defer offComplete()
	defer offError()

	ctx, err := buildContext(factory, inputPath, outputPath, mappingFile)
	if err != nil {
		log.Errorf("tabmod: %v", err)
		return 1
	}
	st.Controls.Set("processing.output_path", outputPath)

	if err := eng.RunSync(ctx); err != nil {
		log.Errorf("tabmod: %v", err)
		return 1
	}
	return exitCode
}

// buildContext loads a processing context from mappingFile if given,
// otherwise probes input's headers and builds an identity mapping.
func buildContext(factory *tabular.Factory, inputPath, outputPath, mappingFile string) (*mapping.Context, error) {
	if mappingFile != "" {
		raw, err := os.ReadFile(mappingFile)
		if err != nil {
			return nil, fmt.Errorf("read mapping file: %w", err)
		}
		ctx, err := config.ParseContext(raw)
		if err != nil {
			return nil, fmt.Errorf("parse mapping file: %w", err)
		}
		if ctx.Source == "" {
			ctx.Source = inputPath
		}
		return ctx, nil
	}

	h, err := factory.Create(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", inputPath, err)
	}
	headers, err := h.GetHeaders()
	if err != nil {
		return nil, fmt.Errorf("read headers of %s: %w", inputPath, err)
	}

	return &mapping.Context{
		Source:  inputPath,
		Mapping: mapping.IdentityMapping(headers),
	}, nil
}
