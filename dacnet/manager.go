package dacnet

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-lnhrdac/logger"
)

// Manager is a registry of named instruments.
//
// Laboratories frequently run more than one DAC; the Manager replaces the
// single module-global device handle pattern with explicit per-instrument
// Driver values, each with its own session and configuration.
//
// Manager is safe for concurrent use.
type Manager struct {
	drivers *xsync.MapOf[string, *Driver]
	logger  logger.Logger
}

// NewManager creates an empty instrument registry. A nil logger selects the
// package default.
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Manager{
		drivers: xsync.NewMapOf[string, *Driver](),
		logger:  l,
	}
}

// Add registers a driver under name. It fails if the name is already taken.
func (m *Manager) Add(name string, d *Driver) error {
	if name == "" {
		return errors.New("dacnet: instrument name must not be empty")
	}
	if d == nil {
		return errors.New("dacnet: driver must not be nil")
	}

	if _, loaded := m.drivers.LoadOrStore(name, d); loaded {
		return fmt.Errorf("dacnet: instrument %q already registered", name)
	}

	m.logger.Debug("dacnet: instrument registered", "name", name, "address", d.cfg.Addr())

	return nil
}

// Get returns the driver registered under name.
func (m *Manager) Get(name string) (*Driver, bool) {
	return m.drivers.Load(name)
}

// Remove unregisters and closes the driver under name. Removing an unknown
// name is a no-op.
func (m *Manager) Remove(name string) {
	if d, loaded := m.drivers.LoadAndDelete(name); loaded {
		_ = d.Close()
	}
}

// Names returns the registered instrument names in unspecified order.
func (m *Manager) Names() []string {
	names := make([]string, 0, m.drivers.Size())
	m.drivers.Range(func(name string, _ *Driver) bool {
		names = append(names, name)

		return true
	})

	return names
}

// CloseAll closes every registered driver and empties the registry.
func (m *Manager) CloseAll() {
	m.drivers.Range(func(name string, d *Driver) bool {
		_ = d.Close()
		m.drivers.Delete(name)

		return true
	})
}

// Duration is a time.Duration that unmarshals from YAML strings in
// time.ParseDuration syntax ("3s", "200ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("dacnet: duration must be a string like \"3s\": %w", err)
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("dacnet: invalid duration %q: %w", s, err)
	}

	*d = Duration(dur)

	return nil
}

// InstrumentSpec describes one instrument in a YAML inventory.
type InstrumentSpec struct {
	Name           string   `yaml:"name"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	ReplyTimeout   Duration `yaml:"reply_timeout"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
	ProbeOnOpen    bool     `yaml:"probe_on_open"`
}

// Inventory is a YAML-loadable list of instruments.
type Inventory struct {
	Instruments []InstrumentSpec `yaml:"instruments"`
}

// LoadInventory decodes and validates a YAML inventory.
func LoadInventory(r io.Reader) (*Inventory, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var inv Inventory
	if err := dec.Decode(&inv); err != nil {
		return nil, fmt.Errorf("dacnet: decode inventory: %w", err)
	}

	if len(inv.Instruments) == 0 {
		return nil, errors.New("dacnet: inventory contains no instruments")
	}

	seen := make(map[string]struct{}, len(inv.Instruments))
	for i := range inv.Instruments {
		spec := &inv.Instruments[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("dacnet: inventory instrument %d has no name", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("dacnet: duplicate instrument name %q in inventory", spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	return &inv, nil
}

// LoadFrom builds a driver for every instrument in the inventory and
// registers it. On the first failure, drivers registered so far stay
// registered; the caller decides whether to proceed or CloseAll.
func (m *Manager) LoadFrom(inv *Inventory) error {
	if inv == nil {
		return errors.New("dacnet: inventory is nil")
	}

	for i := range inv.Instruments {
		spec := &inv.Instruments[i]

		opts := []ConnOption{
			WithLogger(m.logger.With("instrument", spec.Name)),
			WithProbeOnOpen(spec.ProbeOnOpen),
		}
		if spec.ReplyTimeout > 0 {
			opts = append(opts, WithReplyTimeout(time.Duration(spec.ReplyTimeout)))
		}
		if spec.ConnectTimeout > 0 {
			opts = append(opts, WithConnectTimeout(time.Duration(spec.ConnectTimeout)))
		}
		if spec.PollInterval > 0 {
			opts = append(opts, WithPollInterval(time.Duration(spec.PollInterval)))
		}

		cfg, err := NewConnectionConfig(spec.Host, spec.Port, opts...)
		if err != nil {
			return fmt.Errorf("dacnet: instrument %q: %w", spec.Name, err)
		}

		d, err := NewDriver(cfg)
		if err != nil {
			return fmt.Errorf("dacnet: instrument %q: %w", spec.Name, err)
		}

		if err := m.Add(spec.Name, d); err != nil {
			return err
		}
	}

	return nil
}
