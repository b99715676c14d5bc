package param

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	db "ukernel/debug"
	"ukernel/serr"
)

// Default kernel params
var local = `
mm:
  page_size: 4096
  nframe: 4096
  user_stack_size: 8192
  trap_context: 0x3fffffe000

sched:
  policy: stride
  big_stride: 1048576
  min_priority: 2
  max_priority: 1048576
  default_priority: 16

syscall:
  max_syscall_num: 500

loader:
  cache_size: 32

boot:
  initproc: initproc
`

type Tpolicy string

const (
	POLICY_STRIDE Tpolicy = "stride"
	POLICY_PRIO   Tpolicy = "prio"
)

type Config struct {
	MM struct {
		// Size of a page (and of a physical frame) in bytes.
		PAGE_SIZE uint64 `yaml:"page_size" mapstructure:"page_size"`
		// Number of physical frames available for user memory.
		NFRAME int `yaml:"nframe" mapstructure:"nframe"`
		// Size of each task's user stack.
		USER_STACK_SIZE uint64 `yaml:"user_stack_size" mapstructure:"user_stack_size"`
		// Virtual address of the page holding a task's trap context.
		TRAP_CONTEXT uint64 `yaml:"trap_context" mapstructure:"trap_context"`
	} `yaml:"mm" mapstructure:"mm"`
	Sched struct {
		// Key policy for the ready queue (stride or prio).
		POLICY Tpolicy `yaml:"policy" mapstructure:"policy"`
		// Stride of a task is BIG_STRIDE / priority.
		BIG_STRIDE uint64 `yaml:"big_stride" mapstructure:"big_stride"`
		// Valid range for set_priority, inclusive.
		MIN_PRIORITY int64 `yaml:"min_priority" mapstructure:"min_priority"`
		MAX_PRIORITY int64 `yaml:"max_priority" mapstructure:"max_priority"`
		// Priority of a newly created task.
		DEFAULT_PRIORITY int64 `yaml:"default_priority" mapstructure:"default_priority"`
	} `yaml:"sched" mapstructure:"sched"`
	Syscall struct {
		// Length of the syscall_times array in TaskInfo.
		MAX_SYSCALL_NUM int `yaml:"max_syscall_num" mapstructure:"max_syscall_num"`
	} `yaml:"syscall" mapstructure:"syscall"`
	Loader struct {
		// Number of decoded images kept by the image cache.
		CACHE_SIZE int `yaml:"cache_size" mapstructure:"cache_size"`
	} `yaml:"loader" mapstructure:"loader"`
	Boot struct {
		// Path of the first user task.
		INITPROC string `yaml:"initproc" mapstructure:"initproc"`
	} `yaml:"boot" mapstructure:"boot"`
}

var Conf *Config

func init() {
	c, err := ReadConfig(local)
	if err != nil {
		db.DFatalf("Yaml decode default params err %v", err)
	}
	Conf = c
}

func ReadConfig(params string) (*Config, error) {
	config := &Config{}
	d := yaml.NewDecoder(strings.NewReader(params))
	if err := d.Decode(config); err != nil {
		return nil, err
	}
	if err := config.check(); err != nil {
		return nil, err
	}
	return config, nil
}

func ReadConfigFile(pn string) (*Config, error) {
	file, err := os.Open(pn)
	if err != nil {
		return nil, serr.NewErrError(err)
	}
	defer file.Close()
	config, err := ReadConfig(local)
	if err != nil {
		return nil, err
	}
	// Fields missing from the file keep their defaults.
	d := yaml.NewDecoder(file)
	if err := d.Decode(config); err != nil {
		return nil, serr.NewErrError(err)
	}
	if err := config.check(); err != nil {
		return nil, err
	}
	return config, nil
}

// Copy returns a deep copy of c (Config holds no pointers).
func (c *Config) Copy() *Config {
	c1 := *c
	return &c1
}

// Override applies a nested map of overrides, e.g. from "-o
// sched.policy=prio" flags after ParseOverrides.
func (c *Config) Override(m map[string]interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := d.Decode(m); err != nil {
		return err
	}
	db.DPrintf(db.PARAM, "Override %v -> %+v", m, c)
	return c.check()
}

// ParseOverrides turns "a.b=v" strings into the nested map Override
// expects.
func ParseOverrides(kvs []string) (map[string]interface{}, error) {
	m := make(map[string]interface{})
	for _, kv := range kvs {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			return nil, fmt.Errorf("bad override %q", kv)
		}
		keys := strings.Split(kv[:i], ".")
		cur := m
		for _, k := range keys[:len(keys)-1] {
			next, ok := cur[k].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				cur[k] = next
			}
			cur = next
		}
		cur[keys[len(keys)-1]] = kv[i+1:]
	}
	return m, nil
}

func (c *Config) check() error {
	ps := c.MM.PAGE_SIZE
	if ps == 0 || ps&(ps-1) != 0 {
		return fmt.Errorf("page_size %d not a power of two", ps)
	}
	if c.MM.TRAP_CONTEXT%ps != 0 || c.MM.USER_STACK_SIZE%ps != 0 {
		return fmt.Errorf("trap_context %#x or user_stack_size %d not page aligned", c.MM.TRAP_CONTEXT, c.MM.USER_STACK_SIZE)
	}
	if c.Sched.POLICY != POLICY_STRIDE && c.Sched.POLICY != POLICY_PRIO {
		return fmt.Errorf("unknown sched policy %q", c.Sched.POLICY)
	}
	if c.Sched.MIN_PRIORITY < 1 || c.Sched.MIN_PRIORITY > c.Sched.MAX_PRIORITY {
		return fmt.Errorf("bad priority range [%d, %d]", c.Sched.MIN_PRIORITY, c.Sched.MAX_PRIORITY)
	}
	if c.Sched.DEFAULT_PRIORITY < c.Sched.MIN_PRIORITY || c.Sched.DEFAULT_PRIORITY > c.Sched.MAX_PRIORITY {
		return fmt.Errorf("default priority %d out of range", c.Sched.DEFAULT_PRIORITY)
	}
	if c.Syscall.MAX_SYSCALL_NUM <= 0 {
		return fmt.Errorf("bad max_syscall_num %d", c.Syscall.MAX_SYSCALL_NUM)
	}
	return nil
}
