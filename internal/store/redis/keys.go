package redis

const (
	// KeyLastRender holds the text of the last successful render.
	KeyLastRender = "hasu:render:last"
	// KeyLastDocument holds the JSON document of the last successful render.
	KeyLastDocument = "hasu:render:document"
	// KeyLastDigest holds the SHA-256 of the last published render.
	KeyLastDigest = "hasu:render:digest"
)
