package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	Brand   = "Rungroj CarRental รุ่งโรจน์คาร์เร้นท์"
	Subject = "🎉 ยินดีต้อนรับสู่ " + Brand + "!"
)

// WelcomeData fills the welcome template.
type WelcomeData struct {
	Name         string
	DashboardURL string
	Year         int
}

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
    <title>ยินดีต้อนรับสู่ Rungroj CarRental</title>
    <style>
      body { margin: 0; padding: 0; background-color: #f4f4f4; font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; }
      .container { max-width: 600px; margin: 40px auto; background: #ffffff; border-radius: 12px; overflow: hidden; box-shadow: 0 10px 30px rgba(0,0,0,0.1); }
      .header { background: linear-gradient(135deg, #ff7a18, #ff9f1c); padding: 30px; text-align: center; color: white; }
      .header h1 { margin: 0; font-size: 28px; }
      .content { padding: 30px; color: #333; }
      .content p { line-height: 1.6; font-size: 16px; }
      .button { display: inline-block; margin-top: 20px; padding: 14px 28px; background: #ff7a18; color: #ffffff !important; text-decoration: none; border-radius: 30px; font-weight: bold; }
      .feature { margin-bottom: 10px; }
      .footer { background: #f9f9f9; padding: 20px; text-align: center; font-size: 14px; color: #777; }
      .footer strong { color: #ff7a18; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">
        <h1>🚗 ยินดีต้อนรับสู่ Rungroj CarRental</h1>
      </div>
      <div class="content">
        <h2>สวัสดีครับ คุณ{{.Name}} 👋</h2>
        <p>เรายินดีที่คุณเข้าร่วมกับเรา! บัญชีของคุณถูก <strong>สร้างเรียบร้อยแล้ว</strong></p>
        <p>กับ <strong>{{.Brand}}</strong> คุณสามารถจองรถเช่าอุดรธานีได้ง่ายๆ ทั้งรถเช่าขับเอง และรถเช่าพร้อมคนขับ รถใหม่ สะอาด ปลอดภัย</p>
        <div class="features">
          {{range .Features}}<div class="feature">✅ {{.}}</div>
          {{end}}
        </div>
        <p style="margin-top: 20px;">📞 โทร: {{.Phones}}</p>
        <a href="{{.DashboardURL}}" class="button">เข้าสู่แดชบอร์ด</a>
      </div>
      <div class="footer">
        <p>ต้องการความช่วยเหลือ? ตอบกลับอีเมลนี้ได้เลย เรายินดีช่วยเสมอ 😊</p>
        <p>© {{.Year}} <strong>{{.Brand}}</strong> สงวนลิขสิทธิ์</p>
      </div>
    </div>
  </body>
</html>
`))

var welcomeFeatures = []string{
	"รถใหม่ สะอาด ปลอดภัย",
	"บริการรับ-ส่งฟรีที่สนามบิน",
	"ฟรีประกันภัยชั้น 1",
	"ไม่ต้องใช้บัตรเครดิต",
}

const welcomePhones = "086-634-8619 / 096-363-8519"

// RenderWelcome renders the HTML body of the welcome mail. Name is escaped.
func RenderWelcome(data WelcomeData) (string, error) {
	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, struct {
		WelcomeData
		Brand    string
		Features []string
		Phones   string
	}{data, Brand, welcomeFeatures, welcomePhones})
	if err != nil {
		return "", fmt.Errorf("render welcome mail: %w", err)
	}
	return buf.String(), nil
}

// RenderWelcomeText is the plain-text alternative.
func RenderWelcomeText(data WelcomeData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "สวัสดีครับ คุณ%s\n\n", data.Name)
	fmt.Fprintf(&buf, "บัญชีของคุณกับ %s สร้างเรียบร้อยแล้ว\n\n", Brand)
	for _, f := range welcomeFeatures {
		fmt.Fprintf(&buf, "- %s\n", f)
	}
	fmt.Fprintf(&buf, "\nโทร: %s\nแดชบอร์ด: %s\n", welcomePhones, data.DashboardURL)
	return buf.String()
}
