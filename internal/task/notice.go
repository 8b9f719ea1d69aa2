package task

// NoticeKind selects how a notice is presented.
type NoticeKind string

const (
	NoticeInfo     NoticeKind = "info"
	NoticeSuccess  NoticeKind = "success"
	NoticeError    NoticeKind = "error"
	NoticeSignIn   NoticeKind = "sign-in"
	NoticePurchase NoticeKind = "purchase"
	NoticeUpsell   NoticeKind = "upsell"
)

// Notice is a non-blocking, user-visible notification.
type Notice struct {
	Kind    NoticeKind
	Message string
	Code    string
	Attempt int
}

// Notifier receives notices. It must not block.
type Notifier func(Notice)

func (n Notifier) notify(notice Notice) {
	if n != nil {
		n(notice)
	}
}
