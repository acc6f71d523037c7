package mail

import (
	"fmt"

	"github.com/snapboxhq/snapbox/internal/pkg/env"
)

// SendGalleryMail delivers the photo gallery link for a finished session.
func SendGalleryMail(to string, externalID string, photoCount int) error {
	baseURL := env.GetEnv("PUBLIC_BASE_URL", "http://localhost:8080")
	galleryURL := fmt.Sprintf("%s/api/v1/transactions/%s/gallery", baseURL, externalID)

	subject := "Your photos are ready!"
	body := fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Thanks for using our photobox!</h2>
	<p>Your session <strong>%s</strong> produced %d photo(s).</p>
	<p>You can view and download them here:</p>
	<p><a href="%s">%s</a></p>
	<p>The gallery stays available for 14 days, so make sure to save your favorites.</p>
	<p>Have a great day!</p>
</body>
</html>`, externalID, photoCount, galleryURL, galleryURL)

	return SendMail(to, subject, body)
}
