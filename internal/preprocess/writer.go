package preprocess

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/pkg/models"
	"github.com/himanishpuri/behapy/pkg/utils"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Artifact describes the files written for one recording.
type Artifact struct {
	DataPath string
	MetaPath string
	Rows     int
}

// WriteArtifact stores the set rows of dff as an N×2 float64 array and the
// recording attributes as a JSON sidecar. Existing files are replaced.
func WriteArtifact(root string, key models.RecordingKey, dff *DerivedSignal, attrs models.Attrs) (*Artifact, error) {
	art := &Artifact{
		DataPath: bids.PreprocessedPath(root, key, "npy"),
		MetaPath: bids.PreprocessedPath(root, key, "json"),
	}
	if err := utils.MakeDir(filepath.Dir(art.DataPath)); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(art.DataPath), err)
	}

	rows := dff.Rows()
	art.Rows = len(rows)

	var buf bytes.Buffer
	if err := writeRows(&buf, rows); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", art.DataPath, err)
	}
	if err := utils.WriteFileAtomic(art.DataPath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing %s: %w", art.DataPath, err)
	}

	meta := fp.Sidecar{Fs: attrs.Fs, StartTime: attrs.StartTime}
	if err := fp.WriteSidecar(art.MetaPath, meta); err != nil {
		return nil, fmt.Errorf("writing %s: %w", art.MetaPath, err)
	}
	return art, nil
}

func writeRows(w io.Writer, rows [][2]float64) error {
	if len(rows) == 0 {
		// gonum refuses zero-sized matrices
		return npyio.Write(w, []float64{})
	}
	data := make([]float64, 0, 2*len(rows))
	for _, r := range rows {
		data = append(data, r[0], r[1])
	}
	return npyio.Write(w, mat.NewDense(len(rows), 2, data))
}

// ReadArtifact loads a preprocessed array back as rows.
func ReadArtifact(path string) ([][2]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, err
	}
	shape := r.Header.Descr.Shape
	if len(shape) == 1 && shape[0] == 0 {
		return [][2]float64{}, nil
	}
	if len(shape) != 2 || shape[1] != 2 {
		return nil, fmt.Errorf("%s: unexpected shape %v", path, shape)
	}

	var m mat.Dense
	if err := r.Read(&m); err != nil {
		return nil, err
	}
	n, _ := m.Dims()
	rows := make([][2]float64, n)
	for i := range rows {
		rows[i] = [2]float64{m.At(i, 0), m.At(i, 1)}
	}
	return rows, nil
}
