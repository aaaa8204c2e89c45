// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/mesongpio"
	"github.com/warthog618/mesongpio/platform"
	"github.com/warthog618/mesongpio/sim"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func init() {
	runCmd.SetHelpTemplate(runCmd.HelpTemplate() + extendedRunHelp)
	rootCmd.AddCommand(runCmd)
}

var extendedRunHelp = `
The script is a YAML document listing the steps to perform against a
simulated m8b controller, e.g.

  hogs:
    GPIOAO_0: uart
  steps:
    - {op: request-one, pin: GPIOX_3, owner: led, flags: out-low}
    - {op: set, pin: GPIOX_3, owner: led, level: high}
    - {op: request-irq, pin: GPIOX_4, owner: button, trigger: falling}
    - {op: drive, pin: GPIOX_4, level: low}
    - {op: free, pin: GPIOX_3, owner: thief}

Ops are request, request-one, request-array, free, free-array, input,
output, get, set, owner, pull, nopull, irq, request-irq and drive.

Pins may be named or numbered, and numbers outside the chip are passed
through to exercise range checking. Each step reports its result, or the
error with its errno.
`

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script against a simulated controller",
	Long:  `Run a YAML script of GPIO requests against a simulated m8b controller.`,
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

type script struct {
	Hogs  map[string]string `yaml:"hogs"`
	Steps []step            `yaml:"steps"`
}

type step struct {
	Op      string   `yaml:"op"`
	Pin     string   `yaml:"pin"`
	Pins    []string `yaml:"pins"`
	Owner   string   `yaml:"owner"`
	Flags   string   `yaml:"flags"`
	Level   string   `yaml:"level"`
	Pull    string   `yaml:"pull"`
	Trigger string   `yaml:"trigger"`
}

func run(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := loadScript(f)
	if err != nil {
		return err
	}
	cfg := loadConfig(cmd)
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	b, err := newBus(cfg, logger)
	if b == nil {
		return err
	}
	defer b.Close()
	if err != nil {
		logErr(cmd, err)
	}
	return s.run(cmd.OutOrStdout(), b, logger)
}

func loadScript(r io.Reader) (*script, error) {
	var s script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode script")
	}
	return &s, nil
}

// run executes the steps against a simulated chip wired to the first
// bound controller on the bus.
func (s *script) run(w io.Writer, b *platform.Bus, logger *zap.Logger) error {
	var options []sim.Option
	for name, consumer := range s.Hogs {
		pin, err := parsePin(name)
		if err != nil {
			return err
		}
		options = append(options, sim.WithHog(pin, consumer))
	}
	for _, dev := range b.Devices() {
		if inst, ok := b.Instance(dev.Name); ok {
			options = append(options, sim.WithDomain(inst.Domain))
			break
		}
	}
	chip := sim.New(catalog.Len(), options...)
	gw := mesongpio.New(catalog, chip,
		mesongpio.WithLogger(logger),
		mesongpio.WithPullController(chip))
	defer gw.Release()
	ss := &session{w: w, gw: gw, chip: chip}
	for i, st := range s.Steps {
		if err := ss.exec(st); err != nil {
			return errors.WithMessagef(err, "step %d", i+1)
		}
	}
	return nil
}

type session struct {
	w    io.Writer
	gw   *mesongpio.Gateway
	chip *sim.Chip
}

// exec performs the step and reports the result.
//
// Errors returned by the gateway are reported, while errors in the step
// itself are returned.
func (s *session) exec(st step) error {
	target := st.Pin
	if len(st.Pins) > 0 {
		target = strings.Join(st.Pins, ",")
	}
	result, err := s.do(st)
	var serr stepError
	if errors.As(err, &serr) {
		return serr.error
	}
	if err != nil {
		result = fmt.Sprintf("errno %d: %s", mesongpio.Errno(err), err)
	} else if result == "" {
		result = "ok"
	}
	fmt.Fprintf(s.w, "%-13s %-12s %s\n", st.Op, target, result)
	return nil
}

// stepError indicates a malformed step.
type stepError struct {
	error
}

func (s *session) do(st step) (string, error) {
	op, ok := ops[st.Op]
	if !ok {
		return "", stepError{errors.Errorf("unknown op '%s'", st.Op)}
	}
	var pin int
	if op.pin {
		var err error
		if pin, err = parsePin(st.Pin); err != nil {
			return "", stepError{err}
		}
	}
	return op.fn(s, pin, st)
}

type opFunc func(s *session, pin int, st step) (string, error)

var ops = map[string]struct {
	pin bool
	fn  opFunc
}{
	"request":       {true, request},
	"request-one":   {true, requestOne},
	"request-array": {false, requestArray},
	"free":          {true, free},
	"free-array":    {false, freeArray},
	"input":         {true, input},
	"output":        {true, output},
	"get":           {true, get},
	"set":           {true, set},
	"owner":         {true, owner},
	"pull":          {true, pull},
	"nopull":        {true, nopull},
	"irq":           {true, toIRQ},
	"request-irq":   {true, requestIRQ},
	"drive":         {true, drive},
}

func request(s *session, pin int, st step) (string, error) {
	return "", s.gw.Request(pin, st.Owner)
}

func requestOne(s *session, pin int, st step) (string, error) {
	flags, err := parseFlags(st.Flags)
	if err != nil {
		return "", stepError{err}
	}
	return "", s.gw.RequestOne(pin, flags, st.Owner)
}

func arrayRequests(st step) ([]mesongpio.Request, error) {
	flags, err := parseFlags(st.Flags)
	if err != nil {
		return nil, stepError{err}
	}
	reqs := make([]mesongpio.Request, 0, len(st.Pins))
	for _, name := range st.Pins {
		pin, err := parsePin(name)
		if err != nil {
			return nil, stepError{err}
		}
		reqs = append(reqs, mesongpio.Request{Pin: pin, Flags: flags, Label: st.Owner})
	}
	return reqs, nil
}

func requestArray(s *session, _ int, st step) (string, error) {
	reqs, err := arrayRequests(st)
	if err != nil {
		return "", err
	}
	return "", s.gw.RequestArray(reqs)
}

func free(s *session, pin int, st step) (string, error) {
	return "", s.gw.Free(pin, st.Owner)
}

func freeArray(s *session, _ int, st step) (string, error) {
	reqs, err := arrayRequests(st)
	if err != nil {
		return "", err
	}
	return "", s.gw.FreeArray(reqs)
}

func input(s *session, pin int, st step) (string, error) {
	return "", s.gw.DirectionInput(pin, st.Owner)
}

func output(s *session, pin int, st step) (string, error) {
	l, err := parseLevel(st.Level)
	if err != nil {
		return "", stepError{err}
	}
	return "", s.gw.DirectionOutput(pin, st.Owner, l)
}

func get(s *session, pin int, st step) (string, error) {
	l, err := s.gw.Value(pin, st.Owner)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}

func set(s *session, pin int, st step) (string, error) {
	l, err := parseLevel(st.Level)
	if err != nil {
		return "", stepError{err}
	}
	return "", s.gw.SetValue(pin, l, st.Owner)
}

func owner(s *session, pin int, st step) (string, error) {
	o, err := s.gw.Owner(pin)
	if err != nil {
		return "", err
	}
	if o == "" {
		return "unowned", nil
	}
	return "owned by " + o, nil
}

func pull(s *session, pin int, st step) (string, error) {
	p, err := parsePull(st.Pull)
	if err != nil {
		return "", stepError{err}
	}
	return "", s.gw.SetPullUpDown(pin, p, st.Owner)
}

func nopull(s *session, pin int, st step) (string, error) {
	return "", s.gw.DisablePullUp(pin, st.Owner)
}

func toIRQ(s *session, pin int, st step) (string, error) {
	t, err := parseTrigger(st.Trigger)
	if err != nil {
		return "", stepError{err}
	}
	virq, err := s.gw.ToIRQ(pin, st.Owner, t)
	if err != nil {
		return "", err
	}
	return s.watch(virq, t), nil
}

func requestIRQ(s *session, pin int, st step) (string, error) {
	t, err := parseTrigger(st.Trigger)
	if err != nil {
		return "", stepError{err}
	}
	virq, err := s.gw.RequestIRQ(pin, st.Owner, t)
	if err != nil {
		return "", err
	}
	return s.watch(virq, t), nil
}

// watch reports interrupts on virq as they are raised.
func (s *session) watch(virq int, t mesongpio.Trigger) string {
	s.chip.Watch(virq, func(virq int) {
		fmt.Fprintf(s.w, "%-13s %-12d fired\n", "irq", virq)
	})
	return fmt.Sprintf("virq %d %s", virq, t)
}

func drive(s *session, pin int, st step) (string, error) {
	l, err := parseLevel(st.Level)
	if err != nil {
		return "", stepError{err}
	}
	return "", s.chip.Drive(pin, l)
}

// parsePin accepts pin names, and any number so that out of range pins
// can be exercised.
func parsePin(arg string) (int, error) {
	if o, ok := catalog.Lookup(arg); ok {
		return o, nil
	}
	o, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("can't parse pin '%s'", arg)
	}
	return o, nil
}
