// Package web 画面テンプレートと静的ファイル
package web

import "embed"

// Templates layout/ と pages/ のHTMLテンプレート
//
//go:embed templates
var Templates embed.FS

// Static CSSなどの静的ファイル
//
//go:embed static
var Static embed.FS
