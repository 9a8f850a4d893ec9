package lavalink

// Info is the /v4/info response: node version, capabilities, and installed
// plugins.
type Info struct {
	Version        Version  `json:"version"`
	BuildTime      int64    `json:"buildTime"`
	Git            Git      `json:"git"`
	JVM            string   `json:"jvm"`
	Lavaplayer     string   `json:"lavaplayer"`
	SourceManagers []string `json:"sourceManagers"`
	Filters        []string `json:"filters"`
	Plugins        []Plugin `json:"plugins"`
}

// Version is the node's semantic version.
type Version struct {
	Semver     string  `json:"semver"`
	Major      int     `json:"major"`
	Minor      int     `json:"minor"`
	Patch      int     `json:"patch"`
	PreRelease *string `json:"preRelease,omitempty"`
	Build      *string `json:"build,omitempty"`
}

// Git identifies the node's build commit.
type Git struct {
	Branch     string `json:"branch"`
	Commit     string `json:"commit"`
	CommitTime int64  `json:"commitTime"`
}

// Plugin describes one plugin installed on a node.
type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PluginIndex builds a name→plugin lookup from the info's plugin list.
func (i Info) PluginIndex() map[string]Plugin {
	idx := make(map[string]Plugin, len(i.Plugins))
	for _, p := range i.Plugins {
		idx[p.Name] = p
	}
	return idx
}

// HasPlugin reports whether a plugin with the given name is installed.
func (i Info) HasPlugin(name string) bool {
	for _, p := range i.Plugins {
		if p.Name == name {
			return true
		}
	}
	return false
}
