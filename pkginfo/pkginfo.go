// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"

	"github.com/rs/zerolog/log"
)

const Program = "pvfinancials"

var (
	BuildDate  string
	CommitHash string
	Version    string
)

// UserAgent identifies the program in outbound HTTP requests
func UserAgent() string {
	version := Version
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("%s/%s (%s/%s)", Program, version, runtime.GOOS, runtime.GOARCH)
}

// Info describes the running binary
type Info struct {
	Program    string   `json:"program"`
	Version    string   `json:"version"`
	BuildDate  string   `json:"buildDate"`
	CommitHash string   `json:"commit"`
	GoVersion  string   `json:"goVersion"`
	Platform   string   `json:"platform"`
	Deps       []string `json:"deps,omitempty"`
}

// Build collects the version details of the running binary. Module
// dependencies are only listed when withDeps is set.
func Build(withDeps bool) Info {
	info := Info{
		Program:    Program,
		Version:    Version,
		BuildDate:  BuildDate,
		CommitHash: CommitHash,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if withDeps {
		info.Deps = GetDependencyList()
	}
	return info
}

// BuildVersionString returns a version info string suitable for printing on the command line
func BuildVersionString() string {
	return fmt.Sprintf(`%s %s %s/%s

Build Date: %s
Commit: %s
Built with: %s`, Program, Version, runtime.GOOS, runtime.GOARCH, BuildDate, CommitHash, runtime.Version())
}

// GetDependencyList returns every module linked into the program as
// `path="version"`, sorted by path
func GetDependencyList() []string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not get package build info")
		return nil
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		version := dep.Version
		if dep.Replace != nil {
			version = dep.Replace.Version
		}
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, version))
	}

	sort.Strings(deps)

	return deps
}
