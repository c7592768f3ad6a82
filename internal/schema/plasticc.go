package schema

import (
	"errors"
	"fmt"
)

// Table names inside each output container.
const (
	MetadataTableName     = "metadata"
	ObservationsTableName = "observations"
)

// ObjectIDPrefix tags rewritten object identifiers.
const ObjectIDPrefix = "plasticc_"

// ErrNegativeObjectID is returned for object ids that cannot be formatted.
var ErrNegativeObjectID = errors.New("negative object id")

// FormatObjectID rewrites a numeric object id as "plasticc_" followed by the
// id zero-padded to nine digits. Ids of 10^9 and above keep all their digits.
func FormatObjectID(id int64) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("%w: %d", ErrNegativeObjectID, id)
	}
	return fmt.Sprintf("%s%09d", ObjectIDPrefix, id), nil
}

// Bands are the LSST passband labels indexed by passband code.
var Bands = [...]string{"lsstu", "lsstg", "lsstr", "lssti", "lsstz", "lssty"}

// PassbandError reports a passband code outside 0..5.
type PassbandError struct {
	Code int64
}

func (e *PassbandError) Error() string {
	return fmt.Sprintf("passband code %d out of range 0..%d", e.Code, len(Bands)-1)
}

// BandLabel maps a passband code to its band label.
func BandLabel(code int64) (string, error) {
	if code < 0 || code >= int64(len(Bands)) {
		return "", &PassbandError{Code: code}
	}
	return Bands[code], nil
}

// Raw metadata column names.
const (
	ColObjectID         = "object_id"
	ColDDFBool          = "ddf_bool"
	ColHostgalSpecz     = "hostgal_specz"
	ColHostgalPhotoz    = "hostgal_photoz"
	ColHostgalPhotozErr = "hostgal_photoz_err"
	ColDistmod          = "distmod"
	ColTarget           = "target"
	ColTrueTarget       = "true_target"
	ColTrueZ            = "true_z"
)

// Raw observation column names.
const (
	ColMJD          = "mjd"
	ColPassband     = "passband"
	ColFlux         = "flux"
	ColFluxErr      = "flux_err"
	ColDetectedBool = "detected_bool"
)

// MetadataInput is the layout of the *_metadata.csv.gz files.
var MetadataInput = Input{
	Name: "metadata",
	Required: []Column{
		{ColObjectID, TypeInt},
		{ColDDFBool, TypeInt},
		{ColHostgalSpecz, TypeFloat},
		{ColHostgalPhotoz, TypeFloat},
		{ColHostgalPhotozErr, TypeFloat},
		{ColDistmod, TypeFloat},
		{ColTarget, TypeInt},
		{ColTrueTarget, TypeInt},
		{ColTrueZ, TypeFloat},
	},
	Optional: []Column{
		{"ra", TypeFloat},
		{"decl", TypeFloat},
		{"gal_l", TypeFloat},
		{"gal_b", TypeFloat},
		{"mwebv", TypeFloat},
		{"true_submodel", TypeInt},
		{"true_distmod", TypeFloat},
		{"true_lensdmu", TypeFloat},
		{"true_vpec", TypeFloat},
		{"true_rv", TypeFloat},
		{"true_av", TypeFloat},
		{"true_peakmjd", TypeFloat},
		{"libid_cadence", TypeInt},
		{"tflux_u", TypeFloat},
		{"tflux_g", TypeFloat},
		{"tflux_r", TypeFloat},
		{"tflux_i", TypeFloat},
		{"tflux_z", TypeFloat},
		{"tflux_y", TypeFloat},
	},
}

// ObservationsInput is the layout of the *_lightcurves*.csv.gz files.
var ObservationsInput = Input{
	Name: "observations",
	Required: []Column{
		{ColObjectID, TypeInt},
		{ColMJD, TypeFloat},
		{ColPassband, TypeInt},
		{ColFlux, TypeFloat},
		{ColFluxErr, TypeFloat},
		{ColDetectedBool, TypeInt},
	},
}

// metadataColumns are the fixed leading columns of the metadata table.
var metadataColumns = []Column{
	{"object_id", TypeString},
	{"class", TypeInt},
	{"ddf", TypeBool},
	{"host_specz", TypeFloat},
	{"host_photoz", TypeFloat},
	{"host_photoz_error", TypeFloat},
	{"redshift", TypeFloat},
	{"galactic", TypeBool},
}

// MetadataTable returns the metadata output table: the fixed columns
// followed by the pass-through columns present in the input.
func MetadataTable(passthrough []Column) Table {
	cols := make([]Column, 0, len(metadataColumns)+len(passthrough))
	cols = append(cols, metadataColumns...)
	cols = append(cols, passthrough...)
	return Table{
		Name:    MetadataTableName,
		Columns: cols,
		Key:     "object_id",
	}
}

// ObservationsTable is the observation output table.
var ObservationsTable = Table{
	Name: ObservationsTableName,
	Columns: []Column{
		{"object_id", TypeString},
		{"time", TypeFloat},
		{"band", TypeString},
		{"flux", TypeFloat},
		{"flux_error", TypeFloat},
		{"detected", TypeInt},
	},
	Indexed: []string{"object_id"},
}
