package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/johndauphine/plasticc-ingest/internal/fetch"
)

// Raw file names in the archive.
const (
	TrainMetadataFile     = "plasticc_train_metadata.csv.gz"
	TestMetadataFile      = "plasticc_test_metadata.csv.gz"
	TrainObservationsFile = "plasticc_train_lightcurves.csv.gz"

	testObservationsPattern = "plasticc_test_lightcurves_%02d.csv.gz"
)

// Output splits.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// TestObservationFiles returns the test light curve shard names in load order.
func TestObservationFiles(shards int) []string {
	names := make([]string, shards)
	for i := range names {
		names[i] = fmt.Sprintf(testObservationsPattern, i+1)
	}
	return names
}

// ExpectedFiles lists every raw file the ingest reads.
func ExpectedFiles(shards int) []string {
	names := []string{TrainMetadataFile, TestMetadataFile, TrainObservationsFile}
	return append(names, TestObservationFiles(shards)...)
}

// MissingFilesError reports expected files absent from the manifest.
type MissingFilesError struct {
	Names []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("manifest is missing %d expected file(s): %s", len(e.Names), strings.Join(e.Names, ", "))
}

// FileNameError reports a manifest entry whose name is not a plain file name
// inside the raw data directory.
type FileNameError struct {
	Name string
}

func (e *FileNameError) Error() string {
	return fmt.Sprintf("manifest lists unsafe file name %q", e.Name)
}

// checkManifest verifies every listed name stays inside the raw data
// directory and every expected file is listed.
func checkManifest(files []fetch.RemoteFile, shards int) error {
	listed := make(map[string]bool, len(files))
	for _, f := range files {
		if f.Name == "." || !filepath.IsLocal(f.Name) || filepath.Base(f.Name) != f.Name {
			return &FileNameError{Name: f.Name}
		}
		listed[f.Name] = true
	}

	var missing []string
	for _, name := range ExpectedFiles(shards) {
		if !listed[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingFilesError{Names: missing}
	}
	return nil
}
