package config

import (
	"log"
	"sync"

	"github.com/Jeffail/gabs"
)

const configFile = "config.json"

var (
	config   *gabs.Container
	loadOnce sync.Once
)

// Get returns config data with the given path.
// Config data is only allowed in string type.
func Get(path string) string {
	loadOnce.Do(load)
	return config.Path(path).Data().(string)
}

// load parses the config file on the first access, so that importing
// this package only for its config types does not require the file
// to exist.
func load() {
	json, err := gabs.ParseJSONFile(configFile)
	if err != nil {
		log.Panic(err)
	}

	config = json
}
