package web

import "html/template"

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>2026 马年新春 · AI 贺岁</title>
<style>
body { font-family: sans-serif; background: #8b0000; color: #fff3d6; margin: 0; }
main { max-width: 960px; margin: 0 auto; padding: 24px; display: grid; gap: 24px; grid-template-columns: 1fr 1fr; }
section { background: rgba(0, 0, 0, .25); border: 1px solid #d4a017; border-radius: 12px; padding: 16px; }
#drop { border: 2px dashed #d4a017; border-radius: 8px; padding: 24px; text-align: center; }
#drop.over { background: rgba(212, 160, 23, .2); }
img, video { max-width: 100%; border-radius: 8px; }
.error { background: #fff3d6; color: #8b0000; padding: 8px; border-radius: 6px; white-space: pre-line; }
button { background: #d4a017; color: #8b0000; border: 0; border-radius: 6px; padding: 10px 20px; font-weight: bold; }
button:disabled { opacity: .5; }
</style>
</head>
<body>
<main>
<section>
  <h2>1. 上传照片 (Upload photo)</h2>
  <form id="upload" method="post" action="/upload" enctype="multipart/form-data">
    <input type="hidden" name="source" value="browse">
    <div id="drop">
      {{if .Preview}}<img src="{{.Preview}}" alt="{{.FileName}}">{{else}}拖放照片到这里 (Drop a photo here){{end}}
      <p><input type="file" name="photo" accept="image/*" onchange="this.form.submit()"></p>
    </div>
  </form>

  <h2>2. 选择模式 (Choose mode)</h2>
  <form method="post" action="/mode">
    {{range .Modes}}
    <label><input type="radio" name="mode" value="{{.}}" onchange="this.form.submit()"{{if eq . $.Mode}} checked{{end}}> {{if eq (print .) "video"}}贺岁视频 (Video){{else}}新春贺图 (Image){{end}}</label>
    {{end}}
  </form>

  <h2>3. 生成 (Generate)</h2>
  <form method="post" action="/generate">
    <p><input name="name" placeholder="姓名 (Name)" value="{{.Name.String}}"{{if .RequireIdentity}} required{{end}}></p>
    <p><input name="email" type="email" placeholder="邮箱 (Email)" value="{{.Email.String}}"{{if .RequireIdentity}} required{{end}}></p>
    <button type="submit"{{if not .CanGenerate}} disabled{{end}}>生成 (Generate)</button>
  </form>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
</section>

<section id="display">
  {{if .Loading}}
  <p class="loading">⏳ {{.Loading}}</p>
  {{if .Caption}}<p class="caption">{{.Caption}}</p>{{end}}
  {{else if .MediaURL}}
  {{if .Video}}<video src="{{.MediaURL}}" controls autoplay loop playsinline></video>{{else}}<img src="{{.MediaURL}}" alt="result">{{end}}
  <p><a href="{{.DownloadURL}}" download="{{.DownloadName}}">下载 (Download)</a></p>
  {{else}}
  <p class="empty">🧧 生成结果将显示在这里 (Your result will appear here)</p>
  {{end}}
</section>
</main>
<script>
(function () {
  var drop = document.getElementById("drop");
  var form = document.getElementById("upload");
  drop.addEventListener("dragover", function (e) { e.preventDefault(); drop.classList.add("over"); });
  drop.addEventListener("dragleave", function () { drop.classList.remove("over"); });
  drop.addEventListener("drop", function (e) {
    e.preventDefault();
    drop.classList.remove("over");
    var file = e.dataTransfer.files[0];
    if (!file || file.type.indexOf("image/") !== 0) { return; }
    var data = new FormData();
    data.append("source", "drop");
    data.append("photo", file);
    fetch(form.action, { method: "POST", body: data, headers: { "Accept": "application/json" } })
      .then(function () { location.reload(); });
  });

  var status = {{printf "%s" .Status}};
  var events = new EventSource("/events");
  events.onmessage = function (e) {
    var state = JSON.parse(e.data);
    if (state.status !== status) { location.reload(); }
    else if (state.caption) {
      var caption = document.querySelector("#display .caption");
      if (caption) { caption.textContent = state.caption; }
    }
  };
})();
</script>
</body>
</html>
`))
