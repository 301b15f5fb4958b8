/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package lspc

import (
	"os"
	"path/filepath"
)

// FindRootPath walks upward from curPath until a directory containing any
// of the root markers is found. It fails with a RootPathNotFound editor
// error at the filesystem root.
func FindRootPath(curPath string, rootMarkers []string) (string, error) {
	dir := curPath
	if info, err := os.Stat(curPath); err != nil || !info.IsDir() {
		dir = filepath.Dir(curPath)
	}

	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", NewEditorError(EditorRootPathNotFound, curPath)
		}
		dir = parent
	}
}
