package version

import "strconv"

type Version struct {
	MajorNumber int64
	MinorNumber int64
	PatchNumber int64
	Label       string
}

// String generate a human readable Version, with the label as suffix when set
func (m *Version) String() string {
	s := strconv.FormatInt(m.MajorNumber, 10) + "." + strconv.FormatInt(m.MinorNumber, 10) + "." + strconv.FormatInt(m.PatchNumber, 10)
	if m.Label != "" {
		s += "-" + m.Label
	}
	return s
}

var (
	AppVersion = Version{
		MajorNumber: 0,
		MinorNumber: 1,
		PatchNumber: 0,
	}
)
