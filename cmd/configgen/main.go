package main

import (
	"flag"
	"log"
	"strings"

	"github.com/danmuck/p1ctl/internal/config"
)

const defaultPath = "cmd/p1ctl/config.toml"

func main() {
	kind := flag.String("kind", "serial", "template kind: "+strings.Join(config.Kinds, "|"))
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to "+defaultPath+")")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.LoadReaderConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", cfg.Transport.Kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
