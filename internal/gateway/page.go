package gateway

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Object Detection</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2em auto; }
#result img { max-width: 100%; margin-top: 1em; }
pre { background: #f4f4f4; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
<h1>Object Detection</h1>
<form id="upload">
  <input type="file" name="file" accept="image/*" required>
  <label>Confidence <input type="number" name="conf" min="0" max="1" step="0.05" value="0.25"></label>
  <button type="submit">Detect</button>
</form>
<div id="result"></div>
<script>
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  const form = e.target;
  const data = new FormData();
  data.append("file", form.file.files[0]);
  const result = document.getElementById("result");
  result.textContent = "Detecting...";
  try {
    const resp = await fetch("/detect?conf=" + encodeURIComponent(form.conf.value), { method: "POST", body: data });
    const body = await resp.json();
    result.innerHTML = "";
    const pre = document.createElement("pre");
    pre.textContent = JSON.stringify(body, null, 2);
    result.appendChild(pre);
    if (body.annotated_image) {
      const img = document.createElement("img");
      img.src = body.annotated_image;
      result.appendChild(img);
    }
  } catch (err) {
    result.textContent = "Request failed: " + err;
  }
});
</script>
</body>
</html>
`
