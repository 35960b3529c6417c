package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// fileCfg mirrors config.yml. Values found here override defaults but lose to
// flags and environment variables.
type fileCfg struct {
	OpenCTI struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"opencti"`
	Connector struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Mode     string `yaml:"mode"`
		Interval int    `yaml:"interval"`
	} `yaml:"connector"`
	Vysion struct {
		APIURL string `yaml:"api_url"`
		APIKey string `yaml:"api_key"`
		MaxTLP string `yaml:"max_tlp"`
		Score  *int   `yaml:"score"`
	} `yaml:"vysion"`
}

// readFile loads path. A missing file is not an error unless required is set.
func readFile(path string, required bool) (fileCfg, error) {
	var fc fileCfg

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return fc, nil
}
