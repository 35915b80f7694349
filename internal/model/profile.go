package model

// ImageMetadata は画像ソース1件分のメタデータ。
type ImageMetadata struct {
	Src      string `json:"src"`
	MimeType string `json:"mimeType,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ImageSources はオリジナル画像と代替サイズの集合。
type ImageSources struct {
	Original     ImageMetadata   `json:"original"`
	Alternatives []ImageMetadata `json:"alternatives,omitempty"`
}

// BasicProfile はCeramicのbasicProfileドキュメント。
// 3Boxレガシープロフィールもこの形に変換して扱う。
type BasicProfile struct {
	Name             *string       `json:"name,omitempty"`
	Description      *string       `json:"description,omitempty"`
	Emoji            *string       `json:"emoji,omitempty"`
	Image            *ImageSources `json:"image,omitempty"`
	Background       *ImageSources `json:"background,omitempty"`
	URL              *string       `json:"url,omitempty"`
	Gender           *string       `json:"gender,omitempty"`
	HomeLocation     *string       `json:"homeLocation,omitempty"`
	ResidenceCountry *string       `json:"residenceCountry,omitempty"`
}

// ExtendedProfile はMetaGame独自のextendedProfileドキュメント。
type ExtendedProfile struct {
	Pronouns     *string `json:"pronouns,omitempty"`
	Username     *string `json:"username,omitempty"`
	TimeZone     *string `json:"timeZone,omitempty"`
	Availability *int    `json:"availableHours,omitempty"`
}

// Attestation はアカウント連携の証明（did-jwt-vc形式のJWT）。
type Attestation struct {
	DIDJWTVC string `json:"did-jwt-vc,omitempty"`
}

// Account はalsoKnownAsドキュメント内の外部アカウント1件。
type Account struct {
	Protocol     string        `json:"protocol,omitempty"`
	Host         string        `json:"host,omitempty"`
	ID           string        `json:"id"`
	Claim        string        `json:"claim,omitempty"`
	Attestations []Attestation `json:"attestations,omitempty"`
}

// AlsoKnownAs はCeramicのalsoKnownAsドキュメント。
type AlsoKnownAs struct {
	Accounts []Account `json:"accounts"`
}

// ProfileColumn はprofile_cacheの更新対象カラム名。
type ProfileColumn string

const (
	ProfileColumnName               ProfileColumn = "name"
	ProfileColumnDescription        ProfileColumn = "description"
	ProfileColumnEmoji              ProfileColumn = "emoji"
	ProfileColumnImageURL           ProfileColumn = "image_url"
	ProfileColumnBackgroundImageURL ProfileColumn = "background_image_url"
	ProfileColumnGender             ProfileColumn = "gender"
	ProfileColumnLocation           ProfileColumn = "location"
	ProfileColumnCountryCode        ProfileColumn = "country_code"
	ProfileColumnWebsite            ProfileColumn = "website"
	ProfileColumnPronouns           ProfileColumn = "pronouns"
)

// BasicProfileColumns はbasicProfile（またはレガシープロフィール）が解決するカラム。
var BasicProfileColumns = []ProfileColumn{
	ProfileColumnName,
	ProfileColumnDescription,
	ProfileColumnEmoji,
	ProfileColumnImageURL,
	ProfileColumnBackgroundImageURL,
	ProfileColumnGender,
	ProfileColumnLocation,
	ProfileColumnCountryCode,
	ProfileColumnWebsite,
}

// ProfileCache はprofile_cacheテーブルの1行分の更新内容。
//
// マージポリシー: Resolvedに含まれるカラムはソースで解決済みとして上書きする
// （値がnilならNULLを書き込む）。Resolvedに含まれないカラムは既存値を維持する。
type ProfileCache struct {
	PlayerID           string
	Name               *string
	Description        *string
	Emoji              *string
	ImageURL           *string
	BackgroundImageURL *string
	Gender             *string
	Location           *string
	CountryCode        *string
	Website            *string
	Pronouns           *string
	Resolved           []ProfileColumn
}

// Resolve は指定カラムを解決済みとして記録する。重複は無視する。
func (p *ProfileCache) Resolve(cols ...ProfileColumn) {
	for _, c := range cols {
		if !p.IsResolved(c) {
			p.Resolved = append(p.Resolved, c)
		}
	}
}

// IsResolved はカラムが解決済みかを返す。
func (p *ProfileCache) IsResolved(col ProfileColumn) bool {
	for _, c := range p.Resolved {
		if c == col {
			return true
		}
	}
	return false
}

// Value はカラムに対応する値を返す。未知のカラムはnil。
func (p *ProfileCache) Value(col ProfileColumn) *string {
	switch col {
	case ProfileColumnName:
		return p.Name
	case ProfileColumnDescription:
		return p.Description
	case ProfileColumnEmoji:
		return p.Emoji
	case ProfileColumnImageURL:
		return p.ImageURL
	case ProfileColumnBackgroundImageURL:
		return p.BackgroundImageURL
	case ProfileColumnGender:
		return p.Gender
	case ProfileColumnLocation:
		return p.Location
	case ProfileColumnCountryCode:
		return p.CountryCode
	case ProfileColumnWebsite:
		return p.Website
	case ProfileColumnPronouns:
		return p.Pronouns
	default:
		return nil
	}
}

// UpdateSingleResult はupdateSingleアクションの応答。
type UpdateSingleResult struct {
	Success         bool     `json:"success"`
	UpdatedProfiles []string `json:"updatedProfiles"`
}
