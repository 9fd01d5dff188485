package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/fatih/color"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// printResult writes result as JSON (--json), through the user's Go
// template (--format) or as a coloured text summary.
func printResult(w io.Writer, result model.ModuleResult, format string) error {
	switch {
	case IsJSONOutput():
		return writeJSON(w, result)
	case format != "":
		return renderTemplate(w, format, result)
	default:
		printResultText(w, result)
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseFormat compiles a --format template with the sprig function set.
func parseFormat(format string) (*template.Template, error) {
	tmpl, err := template.New("format").Funcs(sprig.TxtFuncMap()).Parse(format)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --format template", err)
	}
	return tmpl, nil
}

func renderTemplate(w io.Writer, format string, data interface{}) error {
	tmpl, err := parseFormat(format)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, data); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot render --format template", err)
	}
	if !strings.HasSuffix(format, "\n") {
		_, err = fmt.Fprintln(w)
	}
	return err
}

// outcomeMarks are the one-character prefixes of the text summary.
var outcomeMarks = map[model.ContainerOutcome]string{
	model.OutcomeCreated:       "+",
	model.OutcomeAlreadyExists: "=",
	model.OutcomeParentMissing: "-",
	model.OutcomeCreateFailed:  "!",
	model.OutcomeUnverified:    "?",
	model.OutcomeUnknown:       " ",
}

func outcomeColor(o model.ContainerOutcome) *color.Color {
	switch o {
	case model.OutcomeCreated:
		return color.New(color.FgGreen)
	case model.OutcomeAlreadyExists:
		return color.New(color.Faint)
	case model.OutcomeParentMissing:
		return color.New(color.FgYellow)
	case model.OutcomeCreateFailed, model.OutcomeUnverified:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New()
	}
}

// printResultText writes one line per container and a summary line.
func printResultText(w io.Writer, result model.ModuleResult) {
	header := fmt.Sprintf("Mode: %s", result.Mode)
	if result.CheckMode {
		header += " (check mode, nothing was changed)"
	}
	color.New(color.Bold).Fprintln(w, header)

	width := 0
	for _, c := range result.Data.Containers {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}

	for _, c := range result.Data.Containers {
		line := fmt.Sprintf("  %s %-*s  %s", outcomeMarks[c.Outcome], width, c.Name, describeOutcome(c))
		outcomeColor(c.Outcome).Fprintln(w, line)
	}

	printDevicesText(w, result.Data.Devices)

	failed := len(result.Failures())
	verb := "created"
	if result.CheckMode {
		verb = "to create"
	}
	summary := fmt.Sprintf("%d container(s) %s, %d failed", result.Data.CreationResult.CountNewContainers, verb, failed)
	if len(result.Data.TaskIDs) > 0 {
		summary += fmt.Sprintf(", tasks: %s", strings.Join(result.Data.TaskIDs, ", "))
	}
	if failed > 0 {
		color.New(color.FgRed).Fprintln(w, summary)
	} else {
		fmt.Fprintln(w, summary)
	}
}

// printDevicesText writes the device placement report, if any.
func printDevicesText(w io.Writer, devices []model.DeviceResult) {
	if len(devices) == 0 {
		return
	}
	fmt.Fprintln(w, "Devices:")
	width := 0
	for _, d := range devices {
		if len(d.Hostname) > width {
			width = len(d.Hostname)
		}
	}
	for _, d := range devices {
		var mark, text string
		c := color.New(color.FgYellow)
		switch d.Outcome {
		case model.DeviceInPlace:
			mark, text, c = "=", "in "+d.Container, color.New(color.Faint)
		case model.DeviceMisplaced:
			mark, text = "~", fmt.Sprintf("in %s, declared in %s", d.Current, d.Container)
		case model.DeviceNotFound:
			mark, text = "-", fmt.Sprintf("not in inventory, declared in %s", d.Container)
		default:
			mark, text = "?", "could not be verified: "+d.Error
		}
		c.Fprintln(w, fmt.Sprintf("  %s %-*s  %s", mark, width, d.Hostname, text))
	}
}

func describeOutcome(c model.ContainerResult) string {
	switch c.Outcome {
	case model.OutcomeCreated:
		if c.Simulated {
			return "would be created under " + c.Parent
		}
		return "created under " + c.Parent
	case model.OutcomeAlreadyExists:
		return "already exists"
	case model.OutcomeParentMissing:
		return fmt.Sprintf("skipped, parent %q does not exist", c.Parent)
	case model.OutcomeCreateFailed:
		return "create failed: " + c.Error
	case model.OutcomeUnverified:
		return "could not be verified: " + c.Error
	default:
		return c.Outcome.String()
	}
}
