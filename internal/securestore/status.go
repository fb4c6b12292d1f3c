package securestore

// Status is a result code returned by an ItemStore. Values follow the
// Security framework OSStatus vocabulary so native and emulated backends
// report the same codes.
type Status int32

const (
	StatusSuccess               Status = 0
	StatusUnimplemented         Status = -4
	StatusIO                    Status = -36
	StatusParam                 Status = -50
	StatusUserCanceled          Status = -128
	StatusNotAvailable          Status = -25291
	StatusAuthFailed            Status = -25293
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusDecode                Status = -26275
)

// Messages as printed by `security error <code>`.
var statusMessages = map[Status]string{
	StatusSuccess:               "No error.",
	StatusUnimplemented:         "Function or operation not implemented.",
	StatusIO:                    "I/O error.",
	StatusParam:                 "One or more parameters passed to a function were not valid.",
	StatusUserCanceled:          "User canceled the operation.",
	StatusNotAvailable:          "No keychain is available. You may need to restart your computer.",
	StatusAuthFailed:            "The user name or passphrase you entered is not correct.",
	StatusDuplicateItem:         "The specified item already exists in the keychain.",
	StatusItemNotFound:          "The specified item could not be found in the keychain.",
	StatusInteractionNotAllowed: "User interaction is not allowed.",
	StatusDecode:                "Unable to decode the provided data.",
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool { return s == StatusSuccess }
