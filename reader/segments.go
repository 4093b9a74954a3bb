package reader

import "os"

// Segment is one file of a (possibly multi-file) forensic container.
type Segment struct {
	Path string
	Size int64
}

// DecodedSegments is the shared piece of EWF and AFF: an ordered list of
// segment files that together form one logical image, and their summed
// size. Full EWF/AFF decoding — compression, chunk tables, hash
// verification — is the external-collaborator library this project does
// not vendor. discoverSegments records only the single file at path, and
// no read across segments is implemented.
type DecodedSegments struct {
	segments []Segment
	total    int64
}

func discoverSegments(path string) (DecodedSegments, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return DecodedSegments{}, err
	}
	return DecodedSegments{
		segments: []Segment{{Path: path, Size: fi.Size()}},
		total:    fi.Size(),
	}, nil
}
