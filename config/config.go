package config

import (
	"flag"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Config contains all the configuration settings for Chatvault.
type Config struct {
	General struct {
		Loglevel  string `yaml:"loglevel"`
		LogToFile bool   `yaml:"logtofile"`
	} `yaml:"general"`
	Files struct {
		// Config is a special variable that returns the name of the active config file.
		// If it's set in the config file, it will be ignored.
		Config  string
		Keyfile string `yaml:"keyfile"`
		MsgDB   string `yaml:"msgdb"`
		IDlog   string `yaml:"idlog"`
		Maildir string `yaml:"maildir"`
		Logfile string `yaml:"logfile"`
	} `yaml:"files"`
	Store struct {
		// Days a read message is retained before Expire deletes it
		MaxAge int `yaml:"max_age"`
		// Days a spooled Message-ID is remembered
		IDexp int `yaml:"id_expire"`
	} `yaml:"store"`
	Daemon struct {
		// Seconds between spool passes
		Loop int `yaml:"loop"`
	} `yaml:"daemon"`
}

type Flags struct {
	Dir      string
	Config   string
	Debug    bool
	Version  bool
	Keygen   bool
	Send     bool
	From     string
	To       string
	Type     string
	Unread   string
	MarkRead string
	Encrypt  bool
	Decrypt  bool
	Stdin    bool
	Daemon   bool
	Expire   bool
}

// WriteConfig will write the current config to a given filename
func (c *Config) WriteConfig(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func (c *Config) Debug() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	return data, err
}

func ParseFlags() *Flags {
	f := new(Flags)
	// Base DIR for easy setting of some default file paths
	flag.StringVar(&f.Dir, "dir", "", "Base DIR for Chatvault files")
	// Config file
	flag.StringVar(&f.Config, "config", "", "Config file")
	// Print debug info
	flag.BoolVar(&f.Debug, "debug", false, "Print detailed config")
	// Print Version
	flag.BoolVar(&f.Version, "version", false, "Print version string")
	flag.BoolVar(&f.Version, "V", false, "Print version string")
	// Generate a new secret key
	flag.BoolVar(&f.Keygen, "keygen", false, "Generate a new secret key")
	// Store a message read from stdin
	flag.BoolVar(&f.Send, "send", false, "Store a message read from stdin")
	flag.BoolVar(&f.Send, "s", false, "Store a message read from stdin")
	flag.StringVar(&f.From, "from", "", "Sender ID")
	flag.StringVar(&f.To, "to", "", "Receiver ID")
	flag.StringVar(&f.Type, "type", "private", "Message type (private or group)")
	// Fetch unread messages
	flag.StringVar(&f.Unread, "unread", "", "Print unread messages for a user")
	flag.StringVar(&f.Unread, "u", "", "Print unread messages for a user")
	// Mark messages read
	flag.StringVar(&f.MarkRead, "mark-read", "", "Comma separated message IDs to mark read")
	flag.StringVar(&f.MarkRead, "r", "", "Comma separated message IDs to mark read")
	// Operator encrypt/decrypt
	flag.BoolVar(&f.Encrypt, "encrypt", false, "Encrypt stdin to hex")
	flag.BoolVar(&f.Encrypt, "e", false, "Encrypt stdin to hex")
	flag.BoolVar(&f.Decrypt, "decrypt", false, "Decrypt hex from stdin")
	flag.BoolVar(&f.Decrypt, "x", false, "Decrypt hex from stdin")
	// Read STDIN
	flag.BoolVar(&f.Stdin, "read-mail", false, "Read a message from stdin into the spool")
	flag.BoolVar(&f.Stdin, "R", false, "Read a message from stdin into the spool")
	// Process the spool as a daemon
	flag.BoolVar(&f.Daemon, "daemon", false, "Process the spool as a daemon")
	flag.BoolVar(&f.Daemon, "D", false, "Process the spool as a daemon")
	// Housekeeping
	flag.BoolVar(&f.Expire, "expire", false, "Expire old read messages and Message-IDs")

	flag.Parse()
	return f
}

// findConfig attempts to locate a chatvault config file
func (f *Flags) findConfig() (string, error) {
	var err error
	var cfgFile string
	// if a --config flag was passed, try that as the highest priority
	if _, err = os.Stat(f.Config); err == nil {
		return f.Config, nil
	}
	// Does the environment variable CHATVAULTCFG point to a valid file?
	if _, err = os.Stat(os.Getenv("CHATVAULTCFG")); err == nil {
		return os.Getenv("CHATVAULTCFG"), nil
	}
	// Is there a chatvault.yml in the PWD?
	pwd, err := os.Getwd()
	if err == nil {
		cfgFile = path.Join(pwd, "chatvault.yml")
		if _, err = os.Stat(cfgFile); err == nil {
			return cfgFile, nil
		}
	}
	// Is there a chatvault.yml file in the dir flag directory
	cfgFile = path.Join(f.Dir, "chatvault.yml")
	if _, err = os.Stat(cfgFile); err == nil {
		return cfgFile, nil
	}
	// Look for a chatvault.yml in the user's homedir
	home, err := os.UserHomeDir()
	if err == nil {
		cfgFile = path.Join(home, "chatvault.yml")
		if _, err = os.Stat(cfgFile); err == nil {
			return cfgFile, nil
		}
	}
	// Last gasp: Try /etc/chatvault.yml.
	cfgFile = "/etc/chatvault.yml"
	if _, err = os.Stat(cfgFile); err == nil {
		return cfgFile, nil
	}
	// Return an error to indicate no config file has been found
	return "", os.ErrNotExist
}

// newConfig returns a new instance of Config with some predefined defaults
func (f *Flags) newConfig() *Config {
	c := new(Config)
	// Default values defined here will be overridden by unmarshaling a config file
	c.General.Loglevel = "warn"
	c.General.LogToFile = false // By default, log to stdout/stderr
	// Config items in the Files section default to a path defined by the --dir flag
	c.Files.Keyfile = path.Join(f.Dir, "secret.key")
	c.Files.MsgDB = path.Join(f.Dir, "msgdb")
	c.Files.IDlog = path.Join(f.Dir, "idlog")
	c.Files.Maildir = path.Join(f.Dir, "Maildir")
	c.Files.Logfile = path.Join(f.Dir, "chatvault.log")
	c.Store.MaxAge = 90
	c.Store.IDexp = 14
	c.Daemon.Loop = 60
	return c
}

// ParseConfig returns an instance of Config with defaults overridden by the content of a config file
func (f *Flags) ParseConfig() (*Config, error) {
	// Fetch an instance of Config with defaults predefined
	c := f.newConfig()
	// Try (really hard) to locate a chatvault config file
	cfgFile, err := f.findConfig()
	if err == nil {
		yamlBytes, err := os.ReadFile(cfgFile)
		if err != nil {
			return nil, err
		}
		// Unmarshal the content of the YAML config file over the existing struct instance
		err = yaml.Unmarshal(yamlBytes, &c)
		if err != nil {
			return nil, err
		}
		// Useful for informing the user what config file is being read
		c.Files.Config = cfgFile
	}
	return c, nil
}
