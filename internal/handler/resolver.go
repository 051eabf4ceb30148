package handler

// Defaults is a snapshot of the process-wide handler defaults, passed
// explicitly into resolution. There is no hidden global registry; mutating
// the source of a snapshot after a handler started never reaches that
// handler.
type Defaults struct {
	Consistency Consistency
	StartFrom   StartFrom

	// Consume-loop tuning, used when the handler declared none of its own.
	ReadBatchSize  int
	PollIntervalMs int
}

// DefaultsFromStrings builds a Defaults snapshot from plain configuration
// spellings. Empty strings fall back to the built-in defaults
// (eventual / origin).
func DefaultsFromStrings(consistency, startFrom string) (Defaults, error) {
	d := Defaults{}
	if consistency != "" {
		c, err := ParseConsistency(consistency)
		if err != nil {
			return Defaults{}, err
		}
		d.Consistency = c
	}
	if startFrom != "" {
		s, err := ParseStartFrom(startFrom)
		if err != nil {
			return Defaults{}, err
		}
		d.StartFrom = s
	}
	return d, nil
}

// Config is the effective, frozen configuration of a started handler.
type Config struct {
	Name        string
	Consistency Consistency
	StartFrom   StartFrom
}

// Resolve computes the effective configuration for a handler by merging, per
// key independently, start-time overrides over declared options over the
// defaults snapshot. Missing everywhere, consistency is eventual and
// start_from is origin. Both option sets are validated against the recognized
// key set; resolution fails fast on the first offending set.
func Resolve(name string, declared Options, defaults Defaults, startOpts Options) (Config, error) {
	if err := ValidateOptions(name, declared); err != nil {
		return Config{}, err
	}
	if err := ValidateOptions(name, startOpts); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Name:        name,
		Consistency: defaults.Consistency,
		StartFrom:   defaults.StartFrom,
	}
	if cfg.Consistency == "" {
		cfg.Consistency = ConsistencyEventual
	}

	if v, ok := declared[OptionConsistency]; ok {
		cfg.Consistency, _ = parseConsistency(v)
	}
	if v, ok := declared[OptionStartFrom]; ok {
		cfg.StartFrom, _ = parseStartFrom(v)
	}
	if v, ok := startOpts[OptionConsistency]; ok {
		cfg.Consistency, _ = parseConsistency(v)
	}
	if v, ok := startOpts[OptionStartFrom]; ok {
		cfg.StartFrom, _ = parseStartFrom(v)
	}
	return cfg, nil
}
