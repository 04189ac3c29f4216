package httpapi

// User-facing messages are Hebrew. Authorization failures stay generic so the
// responses never confirm what exists; validation failures name the problem
// so legitimate users can fix it.
const (
	msgUnauthenticated    = "נדרשת התחברות"
	msgForbidden          = "אין לך הרשאה לבצע פעולה זו"
	msgNotFound           = "המשאב המבוקש לא נמצא"
	msgInternal           = "אירעה שגיאה, נסה שוב מאוחר יותר"
	msgInvalidInput       = "נתונים חסרים או שגויים"
	msgInvalidCredentials = "דוא\"ל או סיסמה שגויים"
	msgSelfDelete         = "לא ניתן למחוק את המשתמש שלך"
	msgUnsupportedFile    = "סוג הקובץ אינו נתמך"

	msgMissingData      = "נתונים חסרים"
	msgPasswordTooShort = "הסיסמה חייבת להכיל לפחות 6 תווים"
	msgInvalidLink      = "קישור לא תקין"
	msgLinkExpired      = "פג תוקף הקישור"
	msgLinkUsed         = "הקישור כבר נוצל"
	msgUserNotFound     = "המשתמש לא נמצא"
	msgResetRequested   = "אם כתובת הדוא\"ל קיימת במערכת, נשלח אליה קישור לאיפוס סיסמה"
	msgPasswordChanged  = "הסיסמה עודכנה בהצלחה"

	msgDuplicateEmail    = "כתובת הדוא\"ל כבר קיימת במערכת"
	msgDuplicatePhone    = "מספר הטלפון כבר קיים במערכת"
	msgDuplicateIDNumber = "מספר הזהות כבר קיים במערכת"
	msgDuplicateGeneric  = "הערך כבר קיים במערכת"

	msgBadConfirm  = "מחרוזת האישור שגויה"
	msgSystemReset = "המערכת אופסה בהצלחה"
)

// The 429 body is a fixed English contract shared with external monitors; it
// intentionally bypasses localization.
const (
	rateLimitError   = "Too many requests"
	rateLimitMessage = "Please try again later"
)
