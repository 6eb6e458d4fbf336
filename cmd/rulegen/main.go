// Command rulegen asks the generation collaborator for a rule set,
// validates its structure, and writes it out as a YAML rule document
// ready for reason-cli.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cognicore/reason/internal/genai"
	"github.com/cognicore/reason/pkg/reason/config"
	"github.com/cognicore/reason/pkg/reason/rulecheck"
)

func main() {
	var (
		baseURL      = flag.String("base-url", "", "Chat completion endpoint (required)")
		model        = flag.String("model", "", "Model name (required)")
		domain       = flag.String("domain", "", "Domain to generate rules for (required)")
		requirements = flag.String("requirements", "", "What the rule set must cover")
		examples     = flag.String("examples", "", "Comma-separated example behaviors")
		style        = flag.String("style", "", "Generation style hint")
		out          = flag.String("out", "rules.yaml", "Output file")
		timeout      = flag.Duration("timeout", 60*time.Second, "Request timeout")
	)
	flag.Parse()

	if *baseURL == "" {
		log.Fatal("--base-url required")
	}
	if *model == "" {
		log.Fatal("--model required")
	}
	if *domain == "" {
		log.Fatal("--domain required")
	}

	client := &genai.Client{
		BaseURL: *baseURL,
		APIKey:  os.Getenv("REASON_API_KEY"),
		Model:   *model,
	}

	req := genai.GenerateRequest{
		Domain:       *domain,
		Requirements: *requirements,
		Style:        *style,
	}
	if *examples != "" {
		for _, ex := range strings.Split(*examples, ",") {
			req.Examples = append(req.Examples, strings.TrimSpace(ex))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Printf("Generating rule set for domain %q...", *domain)
	spec, err := client.GenerateRuleSet(ctx, req)
	if err != nil {
		log.Fatal("generate: ", err)
	}

	report := rulecheck.Validate(spec.Rules)
	for _, w := range report.Warnings {
		log.Println("warning:", w)
	}
	if !report.IsValid {
		for _, e := range report.Errors {
			log.Println("error:", e)
		}
		log.Fatal("generated rule set failed validation")
	}

	if err := config.SaveRules(*out, spec.Rules); err != nil {
		log.Fatal("write rules: ", err)
	}

	fmt.Printf("Wrote %d rules to %s\n", len(spec.Rules), *out)
	for _, r := range spec.Rules {
		fmt.Printf("  - %s: %s\n", r.Name, r.NaturalLanguage)
	}
}
