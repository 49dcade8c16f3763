package models

// CollectedDataOption groups field kinds into one logical datum at a given
// completeness level. The commit engine promotes and supersedes whole
// options, never individual fields, so a reader always sees a coherent datum.
type CollectedDataOption string

const (
	CDOName           CollectedDataOption = "name"
	CDODob            CollectedDataOption = "dob"
	CDOSsn4           CollectedDataOption = "ssn4"
	CDOSsn9           CollectedDataOption = "ssn9"
	CDOPartialAddress CollectedDataOption = "partial_address"
	CDOFullAddress    CollectedDataOption = "full_address"
	CDOEmail          CollectedDataOption = "email"
	CDOPhoneNumber    CollectedDataOption = "phone_number"
	CDOVerifiedEmail  CollectedDataOption = "verified_email"
	CDOVerifiedPhone  CollectedDataOption = "verified_phone_number"
	CDONationality    CollectedDataOption = "nationality"
	CDOUSLegalStatus  CollectedDataOption = "us_legal_status"
)

// cdoDIs maps each option to the fields that constitute it. The ssn9 option
// carries the derived ssn4; the full address carries the partial-address
// fields. Optional members (address line 2) are listed separately so
// Represented does not require them.
var cdoDIs = map[CollectedDataOption][]DataIdentifier{
	CDOName:           {IDFirstName, IDLastName},
	CDODob:            {IDDob},
	CDOSsn4:           {IDSsn4},
	CDOSsn9:           {IDSsn9, IDSsn4},
	CDOPartialAddress: {IDZip, IDCountry},
	CDOFullAddress:    {IDAddressLine1, IDCity, IDState, IDZip, IDCountry},
	CDOEmail:          {IDEmail},
	CDOPhoneNumber:    {IDPhoneNumber},
	CDOVerifiedEmail:  {IDVerifiedEmail},
	CDOVerifiedPhone:  {IDVerifiedPhone},
	CDONationality:    {IDNationality},
	CDOUSLegalStatus:  {IDUSLegalStatus},
}

// cdoRequired is the subset of cdoDIs that must all be present for the option
// to count as represented. For ssn9 the derived ssn4 may lag (older vaults),
// so only ssn9 itself is required.
var cdoRequired = map[CollectedDataOption][]DataIdentifier{
	CDOName:           {IDFirstName, IDLastName},
	CDODob:            {IDDob},
	CDOSsn4:           {IDSsn4},
	CDOSsn9:           {IDSsn9},
	CDOPartialAddress: {IDZip, IDCountry},
	CDOFullAddress:    {IDAddressLine1, IDCity, IDState, IDZip, IDCountry},
	CDOEmail:          {IDEmail},
	CDOPhoneNumber:    {IDPhoneNumber},
	CDOVerifiedEmail:  {IDVerifiedEmail},
	CDOVerifiedPhone:  {IDVerifiedPhone},
	CDONationality:    {IDNationality},
	CDOUSLegalStatus:  {IDUSLegalStatus},
}

// fullVariant maps each lesser option to the more complete variant that
// supersedes it. Options absent from the map have no fuller variant; in
// particular the verified contact options do not supersede the unverified
// siblings, the two coexist.
var fullVariant = map[CollectedDataOption]CollectedDataOption{
	CDOSsn4:           CDOSsn9,
	CDOPartialAddress: CDOFullAddress,
}

func (cdo CollectedDataOption) String() string { return string(cdo) }

// DIs returns every field kind the option owns, including derived and
// optional members.
func (cdo CollectedDataOption) DIs() []DataIdentifier {
	dis := cdoDIs[cdo]
	out := make([]DataIdentifier, len(dis))
	copy(out, dis)
	if cdo == CDOFullAddress {
		out = append(out, IDAddressLine2)
	}
	return out
}

// FullVariant returns the option's fuller variant, if one exists.
func (cdo CollectedDataOption) FullVariant() (CollectedDataOption, bool) {
	full, ok := fullVariant[cdo]
	return full, ok
}

// Represented reports whether the option's required fields are all present in
// the set.
func (cdo CollectedDataOption) Represented(populated DISet) bool {
	return populated.ContainsAll(cdoRequired[cdo])
}

// AllCDOs lists every option in a stable order.
func AllCDOs() []CollectedDataOption {
	return []CollectedDataOption{
		CDOName, CDODob, CDOSsn4, CDOSsn9,
		CDOPartialAddress, CDOFullAddress,
		CDOEmail, CDOPhoneNumber,
		CDOVerifiedEmail, CDOVerifiedPhone,
		CDONationality, CDOUSLegalStatus,
	}
}

// OptionsFromDIs reduces a field set to the maximal options it represents: an
// option is dropped when its fuller variant is also represented, so a set
// holding a full SSN yields ssn9 and never ssn4.
func OptionsFromDIs(populated DISet) []CollectedDataOption {
	var out []CollectedDataOption
	for _, cdo := range AllCDOs() {
		if !cdo.Represented(populated) {
			continue
		}
		if full, ok := cdo.FullVariant(); ok && full.Represented(populated) {
			continue
		}
		out = append(out, cdo)
	}
	return out
}

// OptionForDI returns the most specific option owning the field, preferring
// the lesser variant (ssn4 maps to the ssn4 option, not ssn9).
func OptionForDI(di DataIdentifier) (CollectedDataOption, bool) {
	if di == IDAddressLine2 {
		return CDOFullAddress, true
	}
	switch di {
	case IDSsn4:
		return CDOSsn4, true
	case IDZip, IDCountry:
		return CDOPartialAddress, true
	}
	for _, cdo := range AllCDOs() {
		for _, owned := range cdoDIs[cdo] {
			if owned == di {
				return cdo, true
			}
		}
	}
	return "", false
}
